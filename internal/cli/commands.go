package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/abrahampo1/cryptogest-sub001/internal/randx"
)

const helpText = `Tenants:   tenants, newtenant, rename <id>, deltenant <id>
Vault:     unlock <id>, unlockpk <id>, lock, passwd <id>, passkey <on|off> [id]
Clients:   clients, addclient, delclient <id>
Invoices:  invoices, showinvoice <id>, delinvoice <id>
Documents: docs, adddoc <path>, getdoc <id> <outpath>, deldoc <id>
Backups:   export <dir>, import <archive>, migrate <id> <path>, resetpath <id>
Cloud:     cloudlist [page], upload, download <id> <dir>, clouddel <id>,
           plan, authcheck, link <token> <server>, unlink
Other:     help, exit`

func (a *App) runCommand(ctx context.Context, cmd string, args []string) {
	switch cmd {
	case "help":
		fmt.Fprintln(a.out, helpText)

	case "tenants":
		a.simple(ctx, "tenant:list", nil)
	case "newtenant":
		a.newTenant(ctx)
	case "rename":
		a.rename(ctx, args)
	case "deltenant":
		a.deleteTenant(ctx, args)

	case "unlock":
		a.unlock(ctx, args)
	case "unlockpk":
		a.withArg(ctx, args, "unlockpk <id>", func(id string) {
			a.simple(ctx, "vault:unlock-passkey", map[string]string{"tenantId": id})
		})
	case "lock":
		a.simple(ctx, "vault:lock", nil)
	case "passwd":
		a.changeSecret(ctx, args)
	case "passkey":
		a.passkey(ctx, args)

	case "clients":
		a.simple(ctx, "clients:list", nil)
	case "addclient":
		a.addClient(ctx)
	case "delclient":
		a.withArg(ctx, args, "delclient <id>", func(id string) {
			a.simple(ctx, "clients:delete", map[string]string{"id": id})
		})

	case "invoices":
		a.simple(ctx, "invoices:list", nil)
	case "showinvoice":
		a.withArg(ctx, args, "showinvoice <id>", func(id string) {
			a.simple(ctx, "invoices:get", map[string]string{"id": id})
		})
	case "delinvoice":
		a.withArg(ctx, args, "delinvoice <id>", func(id string) {
			a.simple(ctx, "invoices:delete", map[string]string{"id": id})
		})

	case "docs":
		a.simple(ctx, "documents:list", nil)
	case "adddoc":
		a.addDocument(ctx, args)
	case "getdoc":
		a.getDocument(ctx, args)
	case "deldoc":
		a.withArg(ctx, args, "deldoc <id>", func(id string) {
			a.simple(ctx, "documents:delete", map[string]string{"id": id})
		})

	case "export":
		a.export(ctx, args)
	case "import":
		a.importArchive(ctx, args)
	case "migrate":
		if len(args) < 2 {
			fmt.Fprintln(a.out, "Usage: migrate <id> <path>")
			return
		}
		a.simple(ctx, "backup:migrate", map[string]string{"tenantId": args[0], "newPath": args[1]})
	case "resetpath":
		a.withArg(ctx, args, "resetpath <id>", func(id string) {
			a.simple(ctx, "backup:reset-path", map[string]string{"tenantId": id})
		})

	case "cloudlist":
		page := 1
		if len(args) > 0 {
			fmt.Sscanf(args[0], "%d", &page)
		}
		a.simple(ctx, "cloud:list", map[string]int{"page": page})
	case "upload":
		a.upload(ctx)
	case "download":
		if len(args) < 2 {
			fmt.Fprintln(a.out, "Usage: download <id> <dir>")
			return
		}
		a.simple(ctx, "cloud:download", map[string]string{"id": args[0], "destDir": args[1]})
	case "clouddel":
		a.withArg(ctx, args, "clouddel <id>", func(id string) {
			a.simple(ctx, "cloud:delete", map[string]string{"id": id})
		})
	case "plan":
		a.simple(ctx, "cloud:plan", nil)
	case "authcheck":
		a.simple(ctx, "cloud:auth-check", nil)
	case "link":
		if len(args) < 2 {
			fmt.Fprintln(a.out, "Usage: link <token> <server>")
			return
		}
		a.simple(ctx, "cloud:device-link", map[string]string{"token": args[0], "server": args[1]})
	case "unlink":
		a.simple(ctx, "cloud:unlink", nil)

	default:
		fmt.Fprintln(a.out, "Unknown command:", cmd)
	}
}

func (a *App) simple(ctx context.Context, command string, payload any) {
	if data, ok := a.dispatch(ctx, command, payload); ok {
		a.printData(data)
	}
}

func (a *App) withArg(ctx context.Context, args []string, usage string, run func(arg string)) {
	if len(args) == 0 {
		fmt.Fprintf(a.out, "Usage: %s\n", usage)
		return
	}
	run(args[0])
}

// newTenant registers an empresa and initializes its vault in one flow.
func (a *App) newTenant(ctx context.Context) {
	name, err := getSimpleText(a.reader, "Empresa name:", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	secret, err := getPassword("Master password:", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	defer randx.Wipe(secret)
	repeat, err := getPassword("Repeat password:", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	defer randx.Wipe(repeat)
	if string(secret) != string(repeat) {
		fmt.Fprintln(a.out, "Passwords do not match")
		return
	}

	data, ok := a.dispatch(ctx, "tenant:create", map[string]string{"name": name})
	if !ok {
		return
	}
	id := tenantID(data)
	if id == "" {
		fmt.Fprintln(a.out, "error: could not determine tenant id")
		return
	}
	a.simple(ctx, "vault:setup", map[string]string{"tenantId": id, "secret": string(secret)})
}

func (a *App) unlock(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: unlock <id>")
		return
	}
	secret, err := getPassword("Master password:", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	defer randx.Wipe(secret)
	a.simple(ctx, "vault:unlock", map[string]string{"tenantId": args[0], "secret": string(secret)})
}

func (a *App) changeSecret(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: passwd <id>")
		return
	}
	current, err := getPassword("Current password:", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	defer randx.Wipe(current)
	next, err := getPassword("New password:", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	defer randx.Wipe(next)
	a.simple(ctx, "vault:change-secret", map[string]string{
		"tenantId": args[0], "currentSecret": string(current), "newSecret": string(next),
	})
}

func (a *App) passkey(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: passkey <on|off> [id]")
		return
	}
	switch args[0] {
	case "on":
		a.simple(ctx, "vault:passkey-enable", nil)
	case "off":
		if len(args) < 2 {
			fmt.Fprintln(a.out, "Usage: passkey off <id>")
			return
		}
		a.simple(ctx, "vault:passkey-disable", map[string]string{"tenantId": args[1]})
	default:
		fmt.Fprintln(a.out, "Usage: passkey <on|off> [id]")
	}
}

func (a *App) rename(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: rename <id>")
		return
	}
	name, err := getSimpleText(a.reader, "New name:", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	a.simple(ctx, "tenant:rename", map[string]string{"id": args[0], "name": name})
}

func (a *App) deleteTenant(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: deltenant <id>")
		return
	}
	ok, err := getConfirm(a.reader, "Delete the empresa AND its data directory?", a.out)
	if err != nil || !ok {
		fmt.Fprintln(a.out, "Aborted")
		return
	}
	a.simple(ctx, "tenant:delete", map[string]any{"id": args[0], "removeData": true})
}

func (a *App) addClient(ctx context.Context) {
	name, err := getSimpleText(a.reader, "Client name:", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	nif, _ := getSimpleText(a.reader, "NIF:", a.out)
	email, _ := getSimpleText(a.reader, "Email:", a.out)
	a.simple(ctx, "clients:save", map[string]string{"Name": name, "NIF": nif, "Email": email})
}

func (a *App) addDocument(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: adddoc <path>")
		return
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	a.simple(ctx, "documents:save", map[string]any{
		"name": filepath.Base(args[0]), "data": data,
	})
}

func (a *App) getDocument(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(a.out, "Usage: getdoc <id> <outpath>")
		return
	}
	data, ok := a.dispatch(ctx, "documents:load", map[string]string{"id": args[0]})
	if !ok {
		return
	}
	payload := documentBytes(data)
	if payload == nil {
		fmt.Fprintln(a.out, "error: empty document payload")
		return
	}
	if err := os.WriteFile(args[1], payload, 0o600); err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	fmt.Fprintf(a.out, "Written %d bytes to %s\n", len(payload), args[1])
}

func (a *App) export(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: export <dir>")
		return
	}
	note, _ := getSimpleText(a.reader, "Note (optional):", a.out)
	a.simple(ctx, "backup:export", map[string]string{"note": note, "destDir": args[0]})
}

func (a *App) importArchive(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: import <archive>")
		return
	}
	name, err := getSimpleText(a.reader, "Name for the restored empresa:", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	a.simple(ctx, "backup:import", map[string]string{"archivePath": args[0], "name": name})
}

func (a *App) upload(ctx context.Context) {
	note, _ := getSimpleText(a.reader, "Note (optional):", a.out)
	a.simple(ctx, "cloud:upload", map[string]string{"note": note})
}
