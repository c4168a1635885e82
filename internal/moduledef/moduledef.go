package moduledef

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSource string

// Message declares one message of a module.
type Message struct {
	Name                 string   `json:"messageName"`
	Source               string   `json:"source"`
	Description          string   `json:"description,omitempty"`
	RespondedToBy        string   `json:"respondedToBy,omitempty"`
	SentOnInitialization bool     `json:"sentOnInitialization,omitempty"`
	ErrorCodes           []string `json:"errorCodes,omitempty"`
}

// Definition is a compiled module catalogue.
type Definition struct {
	Name        string
	Version     string
	CoreVersion string
	Messages    []Message
}

// Lookup returns the message named name sent by source.
func (d *Definition) Lookup(name, source string) (Message, bool) {
	for _, m := range d.Messages {
		if m.Name == name && m.Source == source {
			return m, true
		}
	}
	return Message{}, false
}

// ValidateOutgoing checks that sender may send the named message.
func (d *Definition) ValidateOutgoing(sender, name string) error {
	if _, ok := d.Lookup(name, sender); !ok {
		return &UndeclaredMessageError{Module: d.Name, MessageName: name, Source: sender}
	}
	return nil
}

// ValidateIncoming checks that receiver can expect the named message from
// its peer.
func (d *Definition) ValidateIncoming(receiver, name string) error {
	peer := Peer(receiver)
	if _, ok := d.Lookup(name, peer); !ok {
		return &UndeclaredMessageError{Module: d.Name, MessageName: name, Source: peer}
	}
	return nil
}

// InitMessages returns the messages source sends during the handshake.
func (d *Definition) InitMessages(source string) []Message {
	var out []Message
	for _, m := range d.Messages {
		if m.Source == source && m.SentOnInitialization {
			out = append(out, m)
		}
	}
	return out
}

// Peer returns the role opposite to source.
func Peer(source string) string {
	if source == "block" {
		return "embedder"
	}
	return "block"
}

// UndeclaredMessageError reports a message a module does not declare.
type UndeclaredMessageError struct {
	Module      string
	MessageName string
	Source      string
}

func (e *UndeclaredMessageError) Error() string {
	return fmt.Sprintf("module %q declares no message %q sent by %s", e.Module, e.MessageName, e.Source)
}

// CompileFile compiles every module declared in a CUE file.
func CompileFile(path string) ([]*Definition, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module definition %s: %w", path, err)
	}
	return Compile(string(src), path)
}

// Compile compiles every module declared in src, sorted by module name.
func Compile(src, filename string) ([]*Definition, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile module schema: %w", err)
	}

	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v = schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	modules := v.LookupPath(cue.ParsePath("module"))
	if !modules.Exists() {
		return nil, &CompileError{Field: "module", Message: "no modules declared", Pos: v.Pos()}
	}
	iter, err := modules.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []*Definition
	for iter.Next() {
		def, err := compileModule(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, &CompileError{Field: "module", Message: "no modules declared", Pos: v.Pos()}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

// CompileModule compiles src and returns the module named name.
func CompileModule(src, filename, name string) (*Definition, error) {
	defs, err := Compile(src, filename)
	if err != nil {
		return nil, err
	}
	for _, d := range defs {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, &CompileError{Field: "module." + name, Message: "module not declared"}
}

func compileModule(name string, v cue.Value) (*Definition, error) {
	def := &Definition{Name: name}

	var err error
	if def.Version, err = v.LookupPath(cue.ParsePath("version")).String(); err != nil {
		return nil, formatCUEError(err)
	}
	if def.CoreVersion, err = v.LookupPath(cue.ParsePath("coreVersion")).String(); err != nil {
		return nil, formatCUEError(err)
	}

	list, err := v.LookupPath(cue.ParsePath("messages")).List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	seen := make(map[[2]string]bool)
	for list.Next() {
		mv := list.Value()
		msg, err := compileMessage(mv)
		if err != nil {
			return nil, err
		}
		key := [2]string{msg.Name, msg.Source}
		if seen[key] {
			return nil, &CompileError{
				Field:   fmt.Sprintf("module.%s.messages", name),
				Message: fmt.Sprintf("message %q from %s declared twice", msg.Name, msg.Source),
				Pos:     mv.Pos(),
			}
		}
		seen[key] = true
		def.Messages = append(def.Messages, msg)
	}

	for _, m := range def.Messages {
		if m.RespondedToBy == "" {
			continue
		}
		if _, ok := def.Lookup(m.RespondedToBy, Peer(m.Source)); !ok {
			return nil, &CompileError{
				Field:   fmt.Sprintf("module.%s.messages.%s.respondedToBy", name, m.Name),
				Message: fmt.Sprintf("response %q is not declared for %s", m.RespondedToBy, Peer(m.Source)),
				Pos:     v.Pos(),
			}
		}
	}
	return def, nil
}

func compileMessage(v cue.Value) (Message, error) {
	var m Message
	var err error
	if m.Name, err = v.LookupPath(cue.ParsePath("messageName")).String(); err != nil {
		return m, formatCUEError(err)
	}
	if m.Source, err = v.LookupPath(cue.ParsePath("source")).String(); err != nil {
		return m, formatCUEError(err)
	}
	if f := v.LookupPath(cue.ParsePath("description")); f.Exists() {
		if m.Description, err = f.String(); err != nil {
			return m, formatCUEError(err)
		}
	}
	if f := v.LookupPath(cue.ParsePath("respondedToBy")); f.Exists() {
		if m.RespondedToBy, err = f.String(); err != nil {
			return m, formatCUEError(err)
		}
	}
	if f := v.LookupPath(cue.ParsePath("sentOnInitialization")); f.Exists() {
		if m.SentOnInitialization, err = f.Bool(); err != nil {
			return m, formatCUEError(err)
		}
	}
	if f := v.LookupPath(cue.ParsePath("errorCodes")); f.Exists() {
		codes, err := f.List()
		if err != nil {
			return m, formatCUEError(err)
		}
		for codes.Next() {
			code, err := codes.Value().String()
			if err != nil {
				return m, formatCUEError(err)
			}
			m.ErrorCodes = append(m.ErrorCodes, code)
		}
	}
	return m, nil
}

// CompileError is a catalogue error with its source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError keeps the first CUE error that carries a position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
