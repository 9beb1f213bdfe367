package tool

import (
	"fmt"
	"regexp"

	"github.com/hupe1980/assistant/model"
)

const maxToolNameLen = 64

var invalidToolNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// ModuleType categorizes a module for the decision model.
type ModuleType string

const (
	ModuleTypeService ModuleType = "service"
	ModuleTypeChannel ModuleType = "channel"
	ModuleTypeOther   ModuleType = "other"
)

// Module bundles a set of methods under a discoverable name.
type Module struct {
	Name        string
	Type        ModuleType
	Description string
	Methods     []Method
}

// Method returns the method with the given name.
func (m Module) Method(name string) (Method, bool) {
	for _, meth := range m.Methods {
		if meth.Name() == name {
			return meth, true
		}
	}
	return nil, false
}

// ToolName builds the provider wire name of a method: "<module>__<method>"
// restricted to [a-zA-Z0-9_-] and at most 64 characters.
func ToolName(module, method string) string {
	name := method
	if module != "" {
		name = module + "__" + method
	}
	name = invalidToolNameChars.ReplaceAllString(name, "_")
	if len(name) > maxToolNameLen {
		name = name[:maxToolNameLen]
	}
	return name
}

// Definitions flattens every method of every module into the tool list handed
// to the decision model. Order follows module order then method order. Wire
// names are qualified by module and unique within the list; the raw method
// name travels in ToolDefinition.Method.
func Definitions(modules []Module) []model.ToolDefinition {
	var defs []model.ToolDefinition
	seen := make(map[string]int)
	for _, m := range modules {
		for _, meth := range m.Methods {
			defs = append(defs, model.ToolDefinition{
				Type: "function",
				Function: model.FunctionDefinition{
					Name:        uniqueName(seen, ToolName(m.Name, meth.Name())),
					Description: meth.Description(),
					Parameters:  meth.Parameters(),
				},
				Module:            m.Name,
				Method:            meth.Name(),
				ModuleDescription: m.Description,
			})
		}
	}
	return defs
}

// uniqueName suffixes name with a counter when an earlier definition already
// uses it, e.g. after truncation or character replacement.
func uniqueName(seen map[string]int, name string) string {
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	suffix := fmt.Sprintf("_%d", n)
	if len(name)+len(suffix) > maxToolNameLen {
		name = name[:maxToolNameLen-len(suffix)]
	}
	return uniqueName(seen, name+suffix)
}

// Resolve finds the method named by a decision. When module is non-empty the
// lookup is scoped to that module; otherwise the first module exposing the
// method wins.
func Resolve(modules []Module, module, method string) (Module, Method, bool) {
	for _, m := range modules {
		if module != "" && m.Name != module {
			continue
		}
		if meth, ok := m.Method(method); ok {
			return m, meth, true
		}
	}
	return Module{}, nil, false
}
