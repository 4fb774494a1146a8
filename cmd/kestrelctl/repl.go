package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/kestrel-db/kestrel/internal/btree"
	"github.com/kestrel-db/kestrel/pkg/store"
)

func init() {
	rootCmd.AddCommand(newReplCmd())
}

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive shell against the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			return runRepl(db)
		},
	}
}

// replSession holds the shell's working tree, switched by the "use"
// command, mirroring the teacher's single-connection remote REPL but
// operating directly against an in-process *store.Database instead of a
// raft-replicated server over HTTP.
type replSession struct {
	db       *store.Database
	treeName string
	tree     *btree.BTree
}

func (s *replSession) useTree(name string) error {
	tree, err := s.db.OpenTree(name, stringKeyType, stringValueType, 64)
	if err != nil {
		return err
	}
	s.treeName = name
	s.tree = tree
	return nil
}

func runRepl(db *store.Database) error {
	rl, err := readline.New(fmt.Sprintf("kestrel(%s)> ", defaultTreeName))
	if err != nil {
		return err
	}
	defer rl.Close()

	sess := &replSession{db: db}
	if err := sess.useTree(defaultTreeName); err != nil {
		return err
	}

	fmt.Fprintln(rl.Stderr(), "kestrelctl repl — type 'help' for commands, 'exit' to quit")
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if done := sess.dispatch(line, rl); done {
			return nil
		}
	}
}

func (s *replSession) dispatch(line string, rl *readline.Instance) (exit bool) {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "help":
		printReplHelp()
	case "exit", "quit":
		return true
	case "use":
		if len(args) != 1 {
			fmt.Println("usage: use <tree>")
			return false
		}
		if err := s.useTree(args[0]); err != nil {
			fmt.Println("error:", err)
			return false
		}
		rl.SetPrompt(fmt.Sprintf("kestrel(%s)> ", s.treeName))
	case "get":
		if len(args) != 1 {
			fmt.Println("usage: get <key>")
			return false
		}
		v, ok, err := s.tree.Find(&btree.StringKey{Value: args[0]})
		if err != nil {
			fmt.Println("error:", err)
		} else if !ok {
			fmt.Println("(not found)")
		} else {
			fmt.Println(v.(*btree.StringValue).Value)
		}
	case "put":
		if len(args) != 2 {
			fmt.Println("usage: put <key> <value>")
			return false
		}
		if err := s.withTx(func() error {
			return s.tree.SetValue(&btree.StringKey{Value: args[0]}, &btree.StringValue{Value: args[1]})
		}); err != nil {
			fmt.Println("error:", err)
		} else {
			fmt.Println("ok")
		}
	case "delete":
		if len(args) != 1 {
			fmt.Println("usage: delete <key>")
			return false
		}
		var removed bool
		err := s.withTx(func() error {
			var txErr error
			removed, txErr = s.tree.Remove(&btree.StringKey{Value: args[0]})
			return txErr
		})
		if err != nil {
			fmt.Println("error:", err)
		} else if !removed {
			fmt.Println("(not found)")
		} else {
			fmt.Println("ok")
		}
	case "ls":
		if err := s.printLs(); err != nil {
			fmt.Println("error:", err)
		}
	default:
		fmt.Printf("unknown command %q, type 'help' for a list\n", cmd)
	}
	return false
}

// withTx brackets fn in its own top-level transaction, the repl's analogue
// of each kestrelctl subcommand's single db.Begin/tx.Commit pair.
func (s *replSession) withTx(fn func() error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *replSession) printLs() error {
	it, err := s.tree.First()
	if err != nil {
		return err
	}
	for !it.IsFinished() {
		k := it.GetKey().(*btree.StringKey)
		v, err := it.GetValue()
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", k.Value, v.(*btree.StringValue).Value)
		if err := it.Next(); err != nil {
			return err
		}
	}
	return nil
}

func printReplHelp() {
	fmt.Println(`commands:
  help                  show this message
  use <tree>            switch the working tree
  get <key>             look up a key
  put <key> <value>     insert or replace a key's value
  delete <key>          remove a key
  ls                     list every key in the working tree
  exit, quit            leave the shell`)
}
