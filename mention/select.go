package mention

import (
	"github.com/inspirepan/chatcore"
	"github.com/inspirepan/chatcore/registry"
)

// Mode is the kind of tools attached to a request.
type Mode string

const (
	ModeFunctionTools Mode = "function-tools"
	ModeProviderTools Mode = "provider-tools"
)

// Toggles are the user's provider tool switches.
type Toggles struct {
	Search        bool `json:"enableSearch"`
	URLContext    bool `json:"enableUrlContext"`
	CodeExecution bool `json:"enableCodeExecution"`
}

// DefaultToggles leaves search off and URL context and code execution on.
func DefaultToggles() Toggles {
	return Toggles{Search: false, URLContext: true, CodeExecution: true}
}

// ToolSet is the tool selection for one request. FunctionTools and
// NativeTools are never both non-empty.
type ToolSet struct {
	Mode          Mode
	FunctionTools []string
	NativeTools   []chatcore.NativeTool
}

// Empty reports whether no tool is selected.
func (s ToolSet) Empty() bool {
	return len(s.FunctionTools) == 0 && len(s.NativeTools) == 0
}

// ToolChoice is auto when any tool is selected and none otherwise.
func (s ToolSet) ToolChoice() chatcore.ToolChoice {
	if s.Empty() {
		return chatcore.ToolChoiceNone
	}
	return chatcore.ToolChoiceAuto
}

// MaxSteps is the step ceiling of a turn using this set.
func (s ToolSet) MaxSteps() int {
	if s.Empty() {
		return 1
	}
	return chatcore.DefaultMaxSteps
}

// Select decides the tool set of a request. Mentioned tools win outright
// and the toggles are ignored; otherwise the enabled provider tools are
// used.
func Select(mentioned []registry.Serialized, toggles Toggles) ToolSet {
	if len(mentioned) > 0 {
		ids := make([]string, 0, len(mentioned))
		for _, t := range mentioned {
			ids = append(ids, t.ID)
		}
		return ToolSet{Mode: ModeFunctionTools, FunctionTools: ids}
	}
	set := ToolSet{Mode: ModeProviderTools}
	if toggles.Search {
		set.NativeTools = append(set.NativeTools, chatcore.NativeGoogleSearch)
	}
	if toggles.URLContext {
		set.NativeTools = append(set.NativeTools, chatcore.NativeURLContext)
	}
	if toggles.CodeExecution {
		set.NativeTools = append(set.NativeTools, chatcore.NativeCodeExecution)
	}
	return set
}
