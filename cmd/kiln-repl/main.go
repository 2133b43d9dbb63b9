// Command kiln-repl is an interactive shell that embeds the engine
// directly, with no TCP hop, matching original_source/crates/repl.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arvindkrishnan/kiln/config"
	"github.com/arvindkrishnan/kiln/engine"
	"github.com/arvindkrishnan/kiln/store"
)

func main() {
	logger := zap.NewNop().Sugar()
	cfg := config.LoadEngineConfig(logger)

	eng, err := engine.New(engine.Options{
		Store: store.Options{
			Dir:                cfg.DataDir,
			MemtableCapacity:   cfg.MemtableCapacity,
			CompactionEnabled:  cfg.CompactionEnabled,
			CompactionInterval: time.Duration(cfg.CompactionIntervalSeconds) * time.Second,
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open engine:", err)
		os.Exit(1)
	}

	fmt.Println("kiln")
	fmt.Println("a small log-structured key-value store")
	fmt.Println()
	fmt.Println("Here is how to use:")
	fmt.Println("SET key value")
	fmt.Println("GET key")
	fmt.Println("DEL key")
	fmt.Println("LIST")
	fmt.Println("SEGMENT-LIST")
	fmt.Println("SEGMENT-INSPECT segment")
	fmt.Println("EXIT")
	fmt.Println()
	fmt.Println("That's it - have fun.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := dispatch(eng, line); err != nil {
			if err == errExit {
				break
			}
			fmt.Println("error:", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := eng.Shutdown(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "shutdown:", err)
	}
}

var errExit = fmt.Errorf("exit")

// dispatch parses and executes a single REPL line. Returning errExit
// signals the caller to stop the loop without printing an error message.
func dispatch(eng *engine.Engine, line string) error {
	fields := strings.Fields(line)
	verb := strings.ToLower(fields[0])
	rest := fields[1:]

	switch verb {
	case "set":
		if len(rest) != 2 {
			return fmt.Errorf("usage: SET key value")
		}
		return eng.Set([]byte(rest[0]), []byte(rest[1]))

	case "get":
		if len(rest) != 1 {
			return fmt.Errorf("usage: GET key")
		}
		value, ok, err := eng.Get([]byte(rest[0]))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("not found")
		}
		fmt.Println(string(value))
		return nil

	case "del":
		if len(rest) != 1 {
			return fmt.Errorf("usage: DEL key")
		}
		return eng.Delete([]byte(rest[0]))

	case "list":
		keys, err := eng.List()
		if err != nil {
			return err
		}
		for _, key := range keys {
			fmt.Println(key)
		}
		return nil

	case "segment-list":
		names, err := eng.ListSegments()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil

	case "segment-inspect":
		if len(rest) != 1 {
			return fmt.Errorf("usage: SEGMENT-INSPECT segment")
		}
		entries, err := eng.InspectSegment(rest[0])
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s -> offset %d\n", e.Key, e.Offset)
		}
		return nil

	case "exit":
		return errExit

	default:
		return fmt.Errorf("invalid command")
	}
}
