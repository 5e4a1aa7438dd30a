// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// forbiddenImportPrefixes are internal module paths an external script must
// never reach into; allowedSDKPrefix is the one sanctioned escape hatch for
// talking back to the host process.
var forbiddenImportPrefixes = []string{"sequencehive.internal", "sequencehive.store", "sequencehive.config"}

const allowedSDKPrefix = "sequencehive_sdk"

// pythonInterpreter is the subprocess runner for approved scripts.
const pythonInterpreter = "python3"

// Factory builds the complete tool set at startup (C8): internal tools are
// registered directly by their constructors, external scripts are swept
// through quarantine and, for each approved file, AST-checked for
// disallowed imports before being wrapped as a ScriptTool.
type Factory struct {
	registry   *Registry
	quarantine *Quarantine
	logger     *slog.Logger
}

func NewFactory(registry *Registry, q *Quarantine, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{registry: registry, quarantine: q, logger: logger}
}

// RegisterInternal registers every built-in tool. Failures are logged and
// skipped, never fatal, per §4.7 step 1 — a bad tool shouldn't take down
// the rest of the registry.
func (f *Factory) RegisterInternal(tools ...Tool) {
	for _, t := range tools {
		func() {
			defer func() {
				if r := recover(); r != nil {
					f.logger.Error("factory: internal tool failed to register", "panic", r)
				}
			}()
			f.registry.Register(t)
		}()
	}
}

// DiscoverExternal sweeps dir for approved scripts and registers each one
// that passes the import-sandbox check. An external tool with the same
// name as an internal one overrides it (Registry.Register already warns).
func (f *Factory) DiscoverExternal(ctx context.Context, dir string) error {
	approved, err := f.quarantine.Sweep(ctx, dir)
	if err != nil {
		return fmt.Errorf("factory: quarantine sweep: %w", err)
	}
	for _, filename := range approved {
		path := filepath.Join(dir, filename)
		source, err := os.ReadFile(path)
		if err != nil {
			f.logger.Error("factory: could not read approved script", "file", filename, "error", err)
			continue
		}
		if violation := findForbiddenImport(source); violation != "" {
			f.logger.Error("factory: rejecting script with disallowed import", "file", filename, "import", violation)
			continue
		}
		manifest, err := parseScriptManifest(source)
		if err != nil {
			f.logger.Error("factory: could not parse script manifest", "file", filename, "error", err)
			continue
		}
		f.registry.Register(NewScriptTool(path, pythonInterpreter, manifest))
	}
	return nil
}

// findForbiddenImport parses source with the Python grammar and returns the
// first imported module path that starts with a forbidden internal prefix
// and isn't the one allowed SDK prefix, or "" if none is found.
func findForbiddenImport(source []byte) string {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return "" // unparsable source fails the manifest step right after, not here
	}
	defer tree.Close()

	var found string
	walkImports(tree.RootNode(), source, func(module string) {
		if found != "" {
			return
		}
		if module == allowedSDKPrefix || hasPrefixSegment(module, allowedSDKPrefix) {
			return
		}
		for _, prefix := range forbiddenImportPrefixes {
			if module == prefix || hasPrefixSegment(module, prefix) {
				found = module
				return
			}
		}
	})
	return found
}

func hasPrefixSegment(module, prefix string) bool {
	return len(module) > len(prefix) && module[:len(prefix)] == prefix && module[len(prefix)] == '.'
}

// walkImports visits every import_statement / import_from_statement node
// and calls fn with the dotted module path it names.
func walkImports(node *sitter.Node, source []byte, fn func(module string)) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "import_statement", "import_from_statement":
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			switch child.Type() {
			case "dotted_name", "identifier":
				fn(string(source[child.StartByte():child.EndByte()]))
			case "aliased_import":
				if name := child.ChildByFieldName("name"); name != nil {
					fn(string(source[name.StartByte():name.EndByte()]))
				}
			}
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		walkImports(node.Child(i), source, fn)
	}
}
