// Command client is the diagnostic CLI for a running ring: an interactive
// REPL (github.com/peterh/liner) plus a one-shot mode, both issuing
// store/retrieve/lookup/info requests against a node's HTTP surface. It is
// the operator-facing counterpart to the ring's maintenance loops, used for
// manual inspection and smoke-testing joins.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/peterh/liner"

	"chorddht/internal/client"
	"chorddht/internal/domain"
	"chorddht/internal/transport"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4000", "address of the entry-point node")
	idBits := flag.Int("idbits", 160, "identifier space width in bits, must match the ring")
	timeout := flag.Duration("timeout", 5*time.Second, "per-request timeout")
	oneshot := flag.String("cmd", "", "run a single command (e.g. \"info\") and exit instead of opening the REPL")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	space, err := domain.NewSpace(*idBits)
	if err != nil {
		log.Fatalf("invalid identifier space: %v", err)
	}
	cli := client.New(space, &http.Client{Timeout: *timeout})

	sess := &session{cli: cli, space: space, addr: *addr, timeout: *timeout}

	if *oneshot != "" {
		sess.dispatch(strings.Fields(*oneshot))
		return
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Printf("chorddht interactive client. Connected to %s\n", sess.addr)
	fmt.Println("Available commands: store/retrieve/lookup/info/use/exit")

	for {
		input, err := line.Prompt(fmt.Sprintf("chord[%s]> ", sess.addr))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println("aborted")
				continue
			}
			break
		}
		line.AppendHistory(input)

		args := strings.Fields(strings.TrimSpace(input))
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			fmt.Println("bye")
			return
		}
		sess.dispatch(args)
	}
}

// session holds the client and the currently targeted node address, mutable
// via the "use" command.
type session struct {
	cli     client.Client
	space   domain.Space
	addr    string
	timeout time.Duration
}

func (s *session) dispatch(args []string) {
	if len(args) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if args[0] != "use" && args[0] != "exit" && args[0] != "quit" {
			fmt.Printf("latency=%s\n", time.Since(start))
		}
	}()

	switch args[0] {
	case "store":
		if len(args) < 3 {
			fmt.Println("usage: store <key> <value>")
			return
		}
		s.store(ctx, args[1], []byte(strings.Join(args[2:], " ")))

	case "retrieve":
		if len(args) < 2 {
			fmt.Println("usage: retrieve <key>")
			return
		}
		s.retrieve(ctx, args[1])

	case "lookup":
		if len(args) < 2 {
			fmt.Println("usage: lookup <key-name>")
			return
		}
		s.lookup(ctx, args[1])

	case "info":
		s.info(ctx)

	case "use":
		if len(args) < 2 {
			fmt.Println("usage: use <addr>")
			return
		}
		s.addr = args[1]
		fmt.Printf("switched target to %s\n", s.addr)

	default:
		fmt.Printf("unknown command: %s\n", args[0])
	}
}

func (s *session) store(ctx context.Context, key string, value []byte) {
	res := domain.Resource{Key: s.space.Hash(key), RawKey: key, Value: value}
	storedAt, err := s.cli.Store(ctx, s.addr, res)
	if err != nil {
		fmt.Printf("store failed: %v\n", err)
		return
	}
	fmt.Printf("stored (key=%s) at node %s (%s)\n", key, storedAt.ID.String(), storedAt.Addr)
}

func (s *session) retrieve(ctx context.Context, key string) {
	value, found, err := s.cli.Retrieve(ctx, s.addr, key)
	if err != nil {
		fmt.Printf("retrieve failed: %v\n", err)
		return
	}
	if !found {
		fmt.Printf("key not found: %s\n", key)
		return
	}
	fmt.Printf("retrieved (key=%s, %d bytes): %s\n", key, len(value), string(value))
}

func (s *session) lookup(ctx context.Context, keyName string) {
	target := s.space.Hash(keyName)
	owner, err := s.cli.FindSuccessor(ctx, s.addr, target)
	if err != nil {
		fmt.Printf("lookup failed: %v\n", err)
		return
	}
	fmt.Printf("lookup(%s) -> id=%s addr=%s\n", keyName, owner.ID.String(), owner.Addr)
}

func (s *session) info(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+s.addr+"/info", nil)
	if err != nil {
		fmt.Printf("info failed: %v\n", err)
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("info failed: %v\n", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("info failed: node replied with status %d\n", resp.StatusCode)
		return
	}
	var out transport.InfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Printf("info failed: decode reply: %v\n", err)
		return
	}
	fmt.Printf("self:        id=%s addr=%s\n", out.Self.ID, out.Self.Addr)
	if out.Predecessor != nil {
		fmt.Printf("predecessor: id=%s addr=%s\n", out.Predecessor.ID, out.Predecessor.Addr)
	} else {
		fmt.Println("predecessor: <none>")
	}
	fmt.Printf("successor:   id=%s addr=%s\n", out.Successor.ID, out.Successor.Addr)
	fmt.Printf("storage: %d held, %d in owned arc\n", out.StorageCount, out.StorageOwned)
	fmt.Println("finger sample:")
	for i, f := range out.FingerSample {
		fmt.Printf("  [%d] id=%s addr=%s\n", i, f.ID, f.Addr)
	}
}
