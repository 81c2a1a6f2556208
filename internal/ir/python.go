package ir

import (
	sitter "github.com/smacker/go-tree-sitter"
)

func pythonTables() *languageTables {
	t := &languageTables{
		branchKinds: newKindSet("if_statement", "elif_clause", "conditional_expression", "match_statement"),
		loopKinds:   newKindSet("for_statement", "while_statement"),
		tryKinds:    newKindSet("try_statement"),
		skipKinds:   newKindSet("string", "comment", "integer", "float", "true", "false", "none"),
		handlers:    make(map[string]nodeHandler),
	}
	t.handlers["class_definition"] = pyClassHandler
	t.handlers["function_definition"] = pyFunctionHandler
	t.handlers["import_statement"] = pyImportHandler
	t.handlers["import_from_statement"] = pyImportHandler
	t.handlers["call"] = pyCallHandler
	t.handlers["assignment"] = pyAssignmentHandler
	return t
}

func pyFindChild(n *sitter.Node, childType string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil && c.Type() == childType {
			return c
		}
	}
	return nil
}

func pyClassHandler(g *Generator, doc *Document, sf *SourceFile, fr frame) (string, string, *FunctionMetrics, string) {
	name := ""
	if nameNode := pyFindChild(fr.node, "identifier"); nameNode != nil {
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

	if argList := pyFindChild(fr.node, "argument_list"); argList != nil {
		for i := 0; i < int(argList.ChildCount()); i++ {
			child := argList.Child(i)
			if child == nil {
				continue
			}
			if child.Type() == "identifier" || child.Type() == "attribute" {
				baseName := nodeText(child, sf.Source)
				extID := NodeID(sf.RepoID, doc.SnapshotID, sf.FilePath, KindExternalSymbol, baseName, 0, 0)
				doc.AddEdge(id, extID, EdgeInherits)
			}
		}
	}

	// Children (the class body) are attributed to this class's scope, not
	// wrapped in an enclosing function context.
	return id, fqn, nil, ""
}

func pyFunctionHandler(g *Generator, doc *Document, sf *SourceFile, fr frame) (string, string, *FunctionMetrics, string) {
	name := ""
	if nameNode := pyFindChild(fr.node, "identifier"); nameNode != nil {
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

	// finalizeComplexity must run once every descendant has been visited;
	// since traversal is iterative and post-processing here would require
	// a second pass, the function node's Metrics pointer is mutated in
	// place as calls/branches/loops are discovered, and the cyclomatic
	// complexity is computed by finalizeComplexity at the end of Generate.
	return id, fqn, fn, id
}

func pyImportHandler(g *Generator, doc *Document, sf *SourceFile, fr frame) (string, string, *FunctionMetrics, string) {
	modulePath := ""
	if m := pyFindChild(fr.node, "dotted_name"); m != nil {
		modulePath = nodeText(m, sf.Source)
	} else if m := pyFindChild(fr.node, "relative_import"); m != nil {
		modulePath = nodeText(m, sf.Source)
	}
	if modulePath != "" {
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

func pyCallHandler(g *Generator, doc *Document, sf *SourceFile, fr frame) (string, string, *FunctionMetrics, string) {
	if fr.node.ChildCount() == 0 {
		return fr.parentID, fr.fqnScope, fr.fn, fr.fnNodeID
	}
	funcNode := fr.node.Child(0)
	target := ""
	switch funcNode.Type() {
	case "identifier", "attribute":
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

func pyAssignmentHandler(g *Generator, doc *Document, sf *SourceFile, fr frame) (string, string, *FunctionMetrics, string) {
	if left := fr.node.Child(0); left != nil && left.Type() == "identifier" {
		name := nodeText(left, sf.Source)
		if fr.fn != nil {
			fr.fn.Assignments = append(fr.fn.Assignments, name)
		} else if fr.fqnScope == "" {
			// Module-level assignment: record as a Variable IR node.
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
	}
	return fr.parentID, fr.fqnScope, fr.fn, fr.fnNodeID
}
