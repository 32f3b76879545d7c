package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/drpcorg/objgraph"
	"github.com/drpcorg/objgraph/network"
	"github.com/drpcorg/objgraph/op"
	"github.com/drpcorg/objgraph/replication"
	"github.com/ergochat/readline"
)

var ErrUsage = errors.New("usage")

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),

	readline.PcItem("new"),
	readline.PcItem("array"),
	readline.PcItem("prop"),
	readline.PcItem("set"),
	readline.PcItem("del"),
	readline.PcItem("insert"),
	readline.PcItem("remove"),

	readline.PcItem("get"),
	readline.PcItem("find"),
	readline.PcItem("dump"),
	readline.PcItem("history"),
	readline.PcItem("waiting"),

	readline.PcItem("listen"),
	readline.PcItem("connect"),
	readline.PcItem("disconnect"),
	readline.PcItem("peers"),

	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

const help = `new [id]                      create an object
array [id]                    create an array
prop <obj> <name> <json>      create a property
set <obj> <name> <json>       set a property
del <id> [name]               delete an object, or one of its properties
insert <array> <index> <json> insert an element
remove <array> <index>        remove an element
get <id> | find <name> <json> | dump | history | waiting
listen <addr> | connect <addr> | disconnect <addr> | peers
exit`

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

type REPL struct {
	host *replication.Locked
	net  *network.Net
	rl   *readline.Instance
	out  io.Writer
}

func (repl *REPL) Open() (err error) {
	repl.rl, err = readline.NewEx(&readline.Config{
		Prompt:          "◌ ",
		HistoryFile:     ".objgraph_cmd_log.txt",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return
	}
	repl.rl.CaptureExitSignal()
	return
}

func (repl *REPL) Close() error {
	if repl.rl != nil {
		_ = repl.rl.Close()
		repl.rl = nil
	}
	return nil
}

// Step reads and runs one command. io.EOF means the session is over.
func (repl *REPL) Step() error {
	line, err := repl.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) && len(line) != 0 {
		return nil
	}
	if err != nil {
		return err
	}
	return repl.Run(line)
}

// Run executes one command line.
func (repl *REPL) Run(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "help":
		return repl.print(help)
	case "exit", "quit":
		return io.EOF
	case "new", "array":
		return repl.commandNew(cmd, rest)
	case "prop", "set":
		return repl.commandProperty(cmd, rest)
	case "del":
		return repl.commandDelete(rest)
	case "insert":
		return repl.commandInsert(rest)
	case "remove":
		return repl.commandRemove(rest)
	case "get":
		return repl.commandGet(rest)
	case "find":
		return repl.commandFind(rest)
	case "dump":
		return repl.printJSON(repl.host.Dump())
	case "history":
		return repl.commandHistory()
	case "waiting":
		return repl.host.Do(func(g *objgraph.Graph) error {
			for _, o := range g.Waiting() {
				if err := repl.print(o.String()); err != nil {
					return err
				}
			}
			return nil
		})
	case "listen":
		return repl.net.Listen(rest)
	case "connect":
		return repl.net.Connect(rest)
	case "disconnect":
		return repl.net.Disconnect(rest)
	case "peers":
		for _, name := range repl.net.Peers() {
			if err := repl.print(name); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("command unknown: %s", cmd)
	}
}

// args splits off n-1 words; the last argument takes the rest of the line.
func args(rest string, n int) ([]string, error) {
	out := make([]string, 0, n)
	for len(out) < n-1 {
		word, tail, _ := strings.Cut(rest, " ")
		if word == "" {
			return nil, ErrUsage
		}
		out = append(out, word)
		rest = strings.TrimSpace(tail)
	}
	if rest == "" {
		return nil, ErrUsage
	}
	return append(out, rest), nil
}

// parseValue reads a JSON value; anything that is not JSON is a string.
func parseValue(s string) any {
	if v, err := op.DecodeValue([]byte(s)); err == nil {
		return v
	}
	return s
}

func (repl *REPL) commandNew(cmd, rest string) error {
	return repl.host.Do(func(g *objgraph.Graph) (err error) {
		var id op.ID
		switch {
		case cmd == "array" && rest == "":
			id, err = g.NewArray()
		case cmd == "array":
			id, err = g.NewArrayWithID(op.ID(rest))
		case rest == "":
			id, err = g.NewObject()
		default:
			id, err = g.NewObjectWithID(op.ID(rest))
		}
		if err != nil {
			return err
		}
		return repl.print(string(id))
	})
}

func (repl *REPL) commandProperty(cmd, rest string) error {
	a, err := args(rest, 3)
	if err != nil {
		return fmt.Errorf("%w: %s <obj> <name> <json>", err, cmd)
	}
	v := parseValue(a[2])
	return repl.host.Do(func(g *objgraph.Graph) error {
		if cmd == "prop" {
			return g.CreateProperty(op.ID(a[0]), a[1], v)
		}
		return g.SetProperty(op.ID(a[0]), a[1], v)
	})
}

func (repl *REPL) commandDelete(rest string) error {
	id, name, _ := strings.Cut(rest, " ")
	if id == "" {
		return fmt.Errorf("%w: del <id> [name]", ErrUsage)
	}
	name = strings.TrimSpace(name)
	return repl.host.Do(func(g *objgraph.Graph) error {
		if name == "" {
			return g.DeleteObject(op.ID(id))
		}
		return g.DeleteProperty(op.ID(id), name)
	})
}

func (repl *REPL) commandInsert(rest string) error {
	a, err := args(rest, 3)
	if err != nil {
		return fmt.Errorf("%w: insert <array> <index> <json>", err)
	}
	index, err := strconv.Atoi(a[1])
	if err != nil {
		return err
	}
	v := parseValue(a[2])
	return repl.host.Do(func(g *objgraph.Graph) error {
		entry, err := g.InsertElement(op.ID(a[0]), index, v)
		if err != nil {
			return err
		}
		return repl.print(string(entry))
	})
}

func (repl *REPL) commandRemove(rest string) error {
	a, err := args(rest, 2)
	if err != nil {
		return fmt.Errorf("%w: remove <array> <index>", err)
	}
	index, err := strconv.Atoi(a[1])
	if err != nil {
		return err
	}
	return repl.host.Do(func(g *objgraph.Graph) error {
		return g.RemoveElement(op.ID(a[0]), index)
	})
}

func (repl *REPL) commandGet(rest string) error {
	if rest == "" {
		return fmt.Errorf("%w: get <id>", ErrUsage)
	}
	return repl.host.Do(func(g *objgraph.Graph) error {
		ent, ok := g.GetByID(op.ID(rest))
		if !ok {
			return fmt.Errorf("%w: %s", objgraph.ErrObjectUnknown, rest)
		}
		if ent.Kind == objgraph.KindArray {
			return repl.printJSON(ent.Elements)
		}
		return repl.printJSON(ent.Props)
	})
}

func (repl *REPL) commandFind(rest string) error {
	a, err := args(rest, 2)
	if err != nil {
		return fmt.Errorf("%w: find <name> <json>", err)
	}
	v := parseValue(a[1])
	return repl.host.Do(func(g *objgraph.Graph) error {
		id, ok := g.GetByProperty(a[0], v)
		if !ok {
			return fmt.Errorf("%w: %s=%s", objgraph.ErrObjectUnknown, a[0], a[1])
		}
		return repl.print(string(id))
	})
}

func (repl *REPL) commandHistory() error {
	for _, o := range repl.host.History() {
		if err := repl.print(o.String()); err != nil {
			return err
		}
	}
	return nil
}

func (repl *REPL) print(s string) error {
	_, err := fmt.Fprintln(repl.out, s)
	return err
}

func (repl *REPL) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return repl.print(string(data))
}
