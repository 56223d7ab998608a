// Package cli is an interactive console over the bridge router: every action
// the desktop shell would invoke is available as a typed command, which makes
// the whole core drivable without a GUI.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abrahampo1/cryptogest-sub001/internal/bridge"
)

// Input helper indirections, swappable in tests.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
	getConfirm    = GetConfirm
)

type App struct {
	router *bridge.Router
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(router *bridge.Router) *App {
	return &App{
		router: router,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
}

func (a *App) status() string {
	s := a.router.CurrentSession()
	if s == nil {
		return "(locked)"
	}
	return fmt.Sprintf("(%s)", s.TenantID()[:8])
}

// Run drives the REPL until exit or EOF. Progress and device-link events
// arrive asynchronously and are printed as they come.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "CryptoGest console (type 'help' for commands)")

	go a.printEvents(ctx)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprintf(a.out, "cryptogest %s> ", a.status())
		if !scanner.Scan() {
			break
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		if parts[0] == "exit" || parts[0] == "quit" {
			fmt.Fprintln(a.out, "Bye!")
			break
		}
		a.runCommand(ctx, parts[0], parts[1:])
	}

	// never leave a decrypted working copy behind
	a.dispatch(ctx, "vault:lock", nil)
}

func (a *App) printEvents(ctx context.Context) {
	for {
		select {
		case ev := <-a.router.Events():
			switch ev.Name {
			case bridge.EventUploadProgress, bridge.EventDownloadProgress:
				data, _ := json.Marshal(ev.Payload)
				fmt.Fprintf(a.out, "\r%s %s", ev.Name, data)
			default:
				data, _ := json.Marshal(ev.Payload)
				fmt.Fprintf(a.out, "\n%s %s\n", ev.Name, data)
			}
		case <-ctx.Done():
			return
		}
	}
}

// dispatch runs a command through the router and prints the outcome. The
// response data is returned for commands that chain on it.
func (a *App) dispatch(ctx context.Context, command string, payload any) (any, bool) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(a.out, "error: %v\n", err)
			return nil, false
		}
		raw = data
	}

	resp := a.router.Dispatch(ctx, command, raw)
	if !resp.Success {
		fmt.Fprintf(a.out, "error [%s]: %s\n", resp.Error, resp.Message)
		return nil, false
	}
	return resp.Data, true
}

func (a *App) printData(data any) {
	if data == nil {
		fmt.Fprintln(a.out, "OK")
		return
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(a.out, "%v\n", data)
		return
	}
	fmt.Fprintln(a.out, string(out))
}
