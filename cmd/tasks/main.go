package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"task-manager/internal/config"
	"task-manager/internal/db"
	"task-manager/pkg/task"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("config: %v", err)
	}

	ctx := context.Background()
	store, closeStore, err := db.OpenStore(ctx, cfg)
	if err != nil {
		fatal("connect %s: %v", cfg.StoreDriver, err)
	}
	defer closeStore()

	svc, err := task.NewService(store)
	if err != nil {
		fatal("task service: %v", err)
	}

	if err := run(ctx, svc, store, os.Args[1], os.Args[2:]); err != nil {
		closeStore()
		fatal("%v", err)
	}
}

func run(ctx context.Context, svc *task.Service, store task.Store, cmd string, args []string) error {
	switch cmd {
	case "init":
		if err := store.EnsureTable(ctx); err != nil {
			return fmt.Errorf("ensure tasks table: %w", err)
		}
		fmt.Println(`{"status":"ok","message":"tasks table ready"}`)

	case "list":
		flags := parseFlags(args)
		q := task.Query{
			Search: flags["search"],
			Status: task.Status(flags["status"]),
			Page:   intFlag(flags, "page", task.DefaultPage),
			Limit:  intFlag(flags, "limit", task.DefaultLimit),
		}
		page, err := svc.List(ctx, q)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		if flags["format"] == "short" {
			printShortTasks(page)
		} else {
			printJSON(page)
		}

	case "get":
		if len(args) < 1 {
			return errors.New("Usage: tasks get <id>")
		}
		t, err := svc.Get(ctx, args[0])
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}
		printJSON(t)

	case "create":
		flags := parseFlags(args)
		t, err := svc.Create(ctx, task.CreateInput{
			Title:       flags["title"],
			Description: flags["description"],
			Status:      task.Status(flags["status"]),
		})
		if err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		printJSON(t)

	case "update":
		if len(args) < 1 {
			return errors.New("Usage: tasks update <id> [--title=...] [--description=...] [--status=...]")
		}
		flags := parseFlags(args[1:])
		var u task.Update
		if v, ok := flags["title"]; ok {
			u.Title = &v
		}
		if v, ok := flags["description"]; ok {
			u.Description = &v
		}
		if v, ok := flags["status"]; ok {
			s := task.Status(v)
			u.Status = &s
		}
		t, err := svc.Update(ctx, args[0], u)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		printJSON(t)

	case "delete":
		if len(args) < 1 {
			return errors.New("Usage: tasks delete <id>")
		}
		if err := svc.Delete(ctx, args[0]); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		fmt.Println(`{"status":"ok","message":"task deleted"}`)

	case "stats":
		st, err := svc.Stats(ctx)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		printJSON(st)

	default:
		usage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
	return nil
}

// parseFlags parses --key=value and --flag style args into a map.
func parseFlags(args []string) map[string]string {
	flags := make(map[string]string)
	for _, arg := range args {
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		arg = strings.TrimPrefix(arg, "--")
		if idx := strings.Index(arg, "="); idx >= 0 {
			flags[arg[:idx]] = arg[idx+1:]
		} else {
			flags[arg] = ""
		}
	}
	return flags
}

// intFlag returns the flag as an int. Unparseable and non-positive values
// are passed as -1 so query validation rejects them instead of silently
// using the default.
func intFlag(flags map[string]string, key string, defaultVal int) int {
	v, ok := flags[key]
	if !ok || v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return -1
	}
	return n
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("encode JSON: %v", err)
	}
}

func truncStr(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func printShortTasks(page *task.Page) {
	for _, t := range page.Tasks {
		fmt.Printf("%-8s  %-12s  %s\n", truncStr(t.ID, 8), t.Status, truncStr(t.Title, 60))
	}
	p := page.Pagination
	fmt.Printf("page %d/%d, %d tasks\n", p.CurrentPage, p.TotalPages, p.TotalTasks)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "tasks: "+format+"\n", args...)
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: tasks <command>

Commands:
  init     Create the tasks table / indexes
  list     List tasks [--search=...] [--status=...] [--page=N] [--limit=N] [--format=short]
  get      Show one task: get <id>
  create   Create a task --title=... --description=... [--status=...]
  update   Update a task: update <id> [--title=...] [--description=...] [--status=...]
  delete   Delete a task: delete <id>
  stats    Task counts by status

The store is selected with STORE_DRIVER (postgres, mongo, memory).`)
}
