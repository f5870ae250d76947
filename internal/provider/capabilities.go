package provider

// Capabilities is a point-in-time copy of what a running backend
// offers. Values returned by TryGetCapabilities are defensive copies;
// callers may hold them across frames without locking.
type Capabilities struct {
	Model    string   // currently selected model, empty until known
	Models   []string // known models, deduplicated, insertion order
	Commands []string // provider-level slash commands
	Tools    []string // available tool names
	Servers  []string // attached sub-server names
	Policy   AgentPolicy
}

// capabilityState is the backend-owned mutable counterpart of
// Capabilities. Access is guarded by the owning backend's mutex.
type capabilityState struct {
	model    string
	models   []string
	commands []string
	tools    []string
	servers  []string
}

// addModel records a model name, preserving insertion order and
// dropping duplicates.
func (c *capabilityState) addModel(name string) {
	if name == "" {
		return
	}
	for _, m := range c.models {
		if m == name {
			return
		}
	}
	c.models = append(c.models, name)
}

// snapshot copies the state out. The caller supplies the policy flag
// because policy is owned by the backend, not the capability lists.
func (c *capabilityState) snapshot(policy AgentPolicy) Capabilities {
	return Capabilities{
		Model:    c.model,
		Models:   append([]string(nil), c.models...),
		Commands: append([]string(nil), c.commands...),
		Tools:    append([]string(nil), c.tools...),
		Servers:  append([]string(nil), c.servers...),
		Policy:   policy,
	}
}
