package ir

import (
	sitter "github.com/smacker/go-tree-sitter"
)

func javascriptTables() *languageTables {
	t := &languageTables{
		branchKinds: newKindSet("if_statement", "ternary_expression", "switch_statement"),
		loopKinds:   newKindSet("for_statement", "for_in_statement", "while_statement", "do_statement"),
		tryKinds:    newKindSet("try_statement"),
		skipKinds:   newKindSet("string", "comment", "number", "true", "false", "null", "undefined"),
		handlers:    make(map[string]nodeHandler),
	}
	t.handlers["class_declaration"] = jsClassHandler
	t.handlers["function_declaration"] = jsFunctionHandler
	t.handlers["method_definition"] = jsMethodHandler
	t.handlers["import_statement"] = jsImportHandler
	t.handlers["call_expression"] = jsCallHandler
	t.handlers["variable_declarator"] = jsVariableHandler
	return t
}

func jsFindChild(n *sitter.Node, childType string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil && c.Type() == childType {
			return c
		}
	}
	return nil
}

func jsClassHandler(g *Generator, doc *Document, sf *SourceFile, fr frame) (string, string, *FunctionMetrics, string) {
	name := ""
	if nameNode := jsFindChild(fr.node, "identifier"); nameNode != nil {
		name = nodeText(nameNode, sf.Source)
	}
	fqn := JoinFQN(fr.fqnScope, name)
	id := NodeID(sf.RepoID, doc.SnapshotID, sf.FilePath, KindClass, fqn, int(fr.node.StartPoint().Row), int(fr.node.StartPoint().Column))
	doc.AddNode(&Node{
		ID:          id,
		Kind:        KindClass,
		FQN:         fqn,
		Name:        name,
		Span:        spanOf(fr.node, sf.FilePath),
		ParentID:    fr.parentID,
		ContentHash: contentHash([]byte(nodeText(fr.node, sf.Source))),
	})
	doc.AddEdge(fr.parentID, id, EdgeContains)

	if heritage := jsFindChild(fr.node, "class_heritage"); heritage != nil {
		for i := 0; i < int(heritage.ChildCount()); i++ {
			child := heritage.Child(i)
			if child == nil {
				continue
			}
			if child.Type() == "identifier" || child.Type() == "member_expression" {
				baseName := nodeText(child, sf.Source)
				extID := NodeID(sf.RepoID, doc.SnapshotID, sf.FilePath, KindExternalSymbol, baseName, 0, 0)
				doc.AddEdge(id, extID, EdgeInherits)
			}
		}
	}

	return id, fqn, nil, ""
}

func jsNamedFunction(g *Generator, doc *Document, sf *SourceFile, fr frame, nameKind string) (string, string, *FunctionMetrics, string) {
	name := ""
	if nameNode := jsFindChild(fr.node, nameKind); nameNode != nil {
		name = nodeText(nameNode, sf.Source)
	}
	fqn := JoinFQN(fr.fqnScope, name)

	kind := KindFunction
	if fr.fqnScope != "" {
		kind = KindMethod
	}

	id := NodeID(sf.RepoID, doc.SnapshotID, sf.FilePath, kind, fqn, int(fr.node.StartPoint().Row), int(fr.node.StartPoint().Column))
	fn := &FunctionMetrics{}
	doc.AddNode(&Node{
		ID:          id,
		Kind:        kind,
		FQN:         fqn,
		Name:        name,
		Span:        spanOf(fr.node, sf.FilePath),
		ParentID:    fr.parentID,
		ContentHash: contentHash([]byte(nodeText(fr.node, sf.Source))),
		Metrics:     fn,
	})
	doc.AddEdge(fr.parentID, id, EdgeContains)
	return id, fqn, fn, id
}

func jsFunctionHandler(g *Generator, doc *Document, sf *SourceFile, fr frame) (string, string, *FunctionMetrics, string) {
	return jsNamedFunction(g, doc, sf, fr, "identifier")
}

func jsMethodHandler(g *Generator, doc *Document, sf *SourceFile, fr frame) (string, string, *FunctionMetrics, string) {
	return jsNamedFunction(g, doc, sf, fr, "property_identifier")
}

func jsImportHandler(g *Generator, doc *Document, sf *SourceFile, fr frame) (string, string, *FunctionMetrics, string) {
	if srcNode := jsFindChild(fr.node, "string"); srcNode != nil {
		modulePath := trimQuotes(nodeText(srcNode, sf.Source))
		id := NodeID(sf.RepoID, doc.SnapshotID, sf.FilePath, KindImport, modulePath, int(fr.node.StartPoint().Row), int(fr.node.StartPoint().Column))
		doc.AddNode(&Node{
			ID:       id,
			Kind:     KindImport,
			FQN:      modulePath,
			Name:     modulePath,
			Span:     spanOf(fr.node, sf.FilePath),
			ParentID: fr.parentID,
		})
		doc.AddEdge(fr.parentID, id, EdgeContains)
		extID := NodeID(sf.RepoID, doc.SnapshotID, sf.FilePath, KindExternalSymbol, modulePath, 0, 0)
		doc.AddEdge(fr.parentID, extID, EdgeImports)
		if fr.fn != nil {
			fr.fn.Imports = append(fr.fn.Imports, modulePath)
		}
	}
	return fr.parentID, fr.fqnScope, fr.fn, fr.fnNodeID
}

func jsCallHandler(g *Generator, doc *Document, sf *SourceFile, fr frame) (string, string, *FunctionMetrics, string) {
	if fr.node.ChildCount() == 0 {
		return fr.parentID, fr.fqnScope, fr.fn, fr.fnNodeID
	}
	funcNode := fr.node.Child(0)
	if funcNode.Type() == "identifier" && nodeText(funcNode, sf.Source) == "require" {
		if args := jsFindChild(fr.node, "arguments"); args != nil {
			if strArg := jsFindChild(args, "string"); strArg != nil {
				modulePath := trimQuotes(nodeText(strArg, sf.Source))
				extID := NodeID(sf.RepoID, doc.SnapshotID, sf.FilePath, KindExternalSymbol, modulePath, 0, 0)
				doc.AddEdge(fr.parentID, extID, EdgeImports)
			}
		}
		return fr.parentID, fr.fqnScope, fr.fn, fr.fnNodeID
	}

	target := ""
	switch funcNode.Type() {
	case "identifier", "member_expression":
		target = nodeText(funcNode, sf.Source)
	}
	if target != "" && fr.fnNodeID != "" {
		extID := NodeID(sf.RepoID, doc.SnapshotID, sf.FilePath, KindExternalSymbol, target, 0, 0)
		doc.AddEdge(fr.fnNodeID, extID, EdgeCalls)
		if fr.fn != nil {
			fr.fn.Calls = append(fr.fn.Calls, target)
		}
	}
	return fr.parentID, fr.fqnScope, fr.fn, fr.fnNodeID
}

func jsVariableHandler(g *Generator, doc *Document, sf *SourceFile, fr frame) (string, string, *FunctionMetrics, string) {
	nameNode := fr.node.Child(0)
	if nameNode == nil || nameNode.Type() != "identifier" {
		return fr.parentID, fr.fqnScope, fr.fn, fr.fnNodeID
	}
	name := nodeText(nameNode, sf.Source)
	if fr.fn != nil {
		fr.fn.Assignments = append(fr.fn.Assignments, name)
	} else if fr.fqnScope == "" {
		fqn := JoinFQN(fr.fqnScope, name)
		id := NodeID(sf.RepoID, doc.SnapshotID, sf.FilePath, KindVariable, fqn, int(fr.node.StartPoint().Row), int(fr.node.StartPoint().Column))
		doc.AddNode(&Node{
			ID:       id,
			Kind:     KindVariable,
			FQN:      fqn,
			Name:     name,
			Span:     spanOf(fr.node, sf.FilePath),
			ParentID: fr.parentID,
		})
		doc.AddEdge(fr.parentID, id, EdgeContains)
	}
	return fr.parentID, fr.fqnScope, fr.fn, fr.fnNodeID
}

func trimQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'' || s[0] == '`') {
		return s[1 : len(s)-1]
	}
	return s
}
