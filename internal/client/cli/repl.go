package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// printPromptFn prints the prompt without a newline.
var printPromptFn = func(s string) {
	if interactive() {
		fmt.Print(s)
	}
}

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Status(ctx context.Context) error
	Sync(ctx context.Context) error
	Reset(ctx context.Context) error
	Bootstrap(ctx context.Context) error
	Sales(ctx context.Context) error
	Use(ctx context.Context, args []string) error
	Lots(ctx context.Context, args []string) error
	AddLot(ctx context.Context, args []string) error
	Photos(ctx context.Context, args []string) error
	AddPhoto(ctx context.Context, args []string) error
	Primary(ctx context.Context, args []string) error
	Pending(ctx context.Context) error
	Tasks(ctx context.Context) error
	Conflicts(ctx context.Context) error
	Resolve(ctx context.Context, args []string) error
}

const helpText = `Available commands:
  status                         connectivity, queue and cache state
  sync                           push local changes and pull remote ones
  reset                          drop the cache and download everything again
  bootstrap                      priority download of active sales
  sales                          list sales
  use <sale-id>                  select the current sale
  lots [sale-id]                 list lots of a sale
  addlot [title]                 add a lot to the current sale
  photos <lot-id>                list photos of a lot
  addphoto <lot-id> <file> [primary]
  primary <lot-id> <photo-id>    make a photo the primary one
  pending                        number of queued changes
  tasks                          background task state
  conflicts                      unresolved sync conflicts
  resolve <id> local|cloud       close a conflict
  exit | quit`

// runREPL reads one command per line from reader, dispatches it to a and
// prints any error. It returns on EOF, on "exit" or "quit", or when ctx is
// done.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printPromptFn(fmt.Sprintf("lk %s> ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "status":
			cmdErr = a.Status(ctx)
		case "sync":
			cmdErr = a.Sync(ctx)
		case "reset":
			cmdErr = a.Reset(ctx)
		case "bootstrap":
			cmdErr = a.Bootstrap(ctx)
		case "sales":
			cmdErr = a.Sales(ctx)
		case "use":
			cmdErr = a.Use(ctx, args)
		case "lots":
			cmdErr = a.Lots(ctx, args)
		case "addlot":
			cmdErr = a.AddLot(ctx, args)
		case "photos":
			cmdErr = a.Photos(ctx, args)
		case "addphoto":
			cmdErr = a.AddPhoto(ctx, args)
		case "primary":
			cmdErr = a.Primary(ctx, args)
		case "pending":
			cmdErr = a.Pending(ctx)
		case "tasks":
			cmdErr = a.Tasks(ctx)
		case "conflicts":
			cmdErr = a.Conflicts(ctx)
		case "resolve":
			cmdErr = a.Resolve(ctx, args)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
		if err != nil {
			return
		}
	}
}
