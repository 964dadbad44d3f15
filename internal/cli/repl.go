package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. The real App
// satisfies it; tests can substitute a stub.
type execIface interface {
	Activate(ctx context.Context) error
	Codes(ctx context.Context) error
	Tokens(ctx context.Context) error
	Use(ctx context.Context, tokenID string) error
	Refresh(ctx context.Context, force bool) error
	Quota(ctx context.Context, tokenID string) error
	Mode(ctx context.Context, mode string) error
	Status(ctx context.Context) error
	Update(ctx context.Context) error
	Unbind(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL reads a line, dispatches the first token as the command and loops
// until EOF or an explicit exit. Handler errors are printed by the handlers
// themselves; the loop only does I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("cb> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn("Available commands: activate, codes, tokens, use <id>, refresh [force], quota <id>, mode [normal|autoswitch], status, update, unbind, logout, exit")

		case "activate":
			_ = a.Activate(ctx)

		case "codes":
			_ = a.Codes(ctx)

		case "t", "tokens":
			_ = a.Tokens(ctx)

		case "use":
			if len(args) != 1 {
				printlnFn("Usage: use <token-id>")
				continue
			}
			_ = a.Use(ctx, args[0])

		case "refresh":
			force := len(args) == 1 && args[0] == "force"
			_ = a.Refresh(ctx, force)

		case "quota":
			if len(args) != 1 {
				printlnFn("Usage: quota <token-id>")
				continue
			}
			_ = a.Quota(ctx, args[0])

		case "mode":
			mode := ""
			if len(args) == 1 {
				mode = args[0]
			}
			_ = a.Mode(ctx, mode)

		case "s", "status":
			_ = a.Status(ctx)

		case "update":
			_ = a.Update(ctx)

		case "unbind":
			_ = a.Unbind(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
