// Command routerproxy-admin is an interactive shell over pkg/adminapi,
// standing in for the out-of-scope HTTP admin UI: every subcommand below
// calls directly into adminapi.API in-process.
//
// Commands:
//
//	add <id> <name> <host> <port> <user> <password>   add and start a device
//	update <id> <name> <host> <port> <user> <password> update a device
//	remove <id>                                        stop and delete a device
//	reconnect-db                                        reopen the queue database
//	clear-queue                                         delete every queued command
//	list-queue [page] [per-page]                        list queued commands
//	queue-depth <id>                                    count a device's undelivered commands
//	status                                              show the supervisor status map
//	help
//	quit
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mikrotik-fleet/routerproxy/pkg/adminapi"
	"github.com/mikrotik-fleet/routerproxy/pkg/config"
	"github.com/mikrotik-fleet/routerproxy/pkg/queue"
	"github.com/mikrotik-fleet/routerproxy/pkg/supervisor"
)

func main() {
	devicesFile := flag.String("devices", "devices.yaml", "device list YAML file")
	queueDB := flag.String("queue-db", "routerproxy.db", "queue database path")
	flag.Parse()

	devices, err := config.NewYAMLStore(*devicesFile)
	if err != nil {
		fmt.Println(err)
		return
	}
	store, err := queue.NewStore(*queueDB)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer store.Close()

	sup := supervisor.New(store, nil)
	defer sup.StopAll()
	api := adminapi.New(sup, store, devices)

	rl, err := readline.New("admin> ")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer rl.Close()

	printHelp()
	ctx := context.Background()
	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return
		}
		if err != nil {
			fmt.Println(err)
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		args := strings.Fields(line)
		cmd := strings.ToLower(args[0])
		args = args[1:]

		switch cmd {
		case "help", "?":
			printHelp()
		case "add":
			cmdAdd(ctx, api, args)
		case "update":
			cmdUpdate(ctx, api, args)
		case "remove":
			cmdRemove(ctx, api, args)
		case "reconnect-db":
			cmdReconnectDB(api)
		case "clear-queue":
			cmdClearQueue(api)
		case "list-queue":
			cmdListQueue(api, args)
		case "queue-depth":
			cmdQueueDepth(api, args)
		case "status":
			cmdStatus(api)
		case "quit", "exit":
			return
		default:
			fmt.Printf("unknown command: %s (type 'help')\n", cmd)
		}
	}
}

func printHelp() {
	fmt.Println(`routerproxy-admin commands:
  add <id> <name> <host> <port> <user> <password>
  update <id> <name> <host> <port> <user> <password>
  remove <id>
  reconnect-db
  clear-queue
  list-queue [page] [per-page]
  queue-depth <id>
  status
  quit`)
}

func cmdAdd(ctx context.Context, api *adminapi.API, args []string) {
	d, err := parseDeviceArgs(args)
	if err != nil {
		fmt.Println(err)
		return
	}
	d.Enabled = true
	created, err := api.AddDevice(ctx, d)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("added device %d on proxy port %d\n", created.ID, created.ProxyPort)
}

func cmdUpdate(ctx context.Context, api *adminapi.API, args []string) {
	d, err := parseDeviceArgs(args)
	if err != nil {
		fmt.Println(err)
		return
	}
	d.Enabled = true
	if err := api.UpdateDevice(ctx, d); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("updated device %d\n", d.ID)
}

func cmdRemove(ctx context.Context, api *adminapi.API, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: remove <id>")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := api.RemoveDevice(ctx, id); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("removed device %d\n", id)
}

func cmdReconnectDB(api *adminapi.API) {
	if err := api.ReconnectDB(); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("reconnected")
}

func cmdClearQueue(api *adminapi.API) {
	if err := api.ClearQueue(); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("queue cleared")
}

func cmdListQueue(api *adminapi.API, args []string) {
	page, perPage := 1, 20
	if len(args) >= 1 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			page = v
		}
	}
	if len(args) >= 2 {
		if v, err := strconv.Atoi(args[1]); err == nil {
			perPage = v
		}
	}
	rows, total, err := api.ListQueue(page, perPage)
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, r := range rows {
		fmt.Printf("#%d device=%d status=%s retries=%d\n", r.ID, r.DeviceID, r.Status, r.RetryCount)
	}
	fmt.Printf("(%d total)\n", total)
}

func cmdQueueDepth(api *adminapi.API, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: queue-depth <id>")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Println(err)
		return
	}
	n, err := api.QueueDepth(id)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("device %d: %d undelivered command(s)\n", id, n)
}

func cmdStatus(api *adminapi.API) {
	snapshot := api.GetStatus()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s: %s\n", k, snapshot[k])
	}
}

func parseDeviceArgs(args []string) (config.Device, error) {
	if len(args) != 6 {
		return config.Device{}, fmt.Errorf("usage: <id> <name> <host> <port> <user> <password>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return config.Device{}, err
	}
	port, err := strconv.Atoi(args[3])
	if err != nil {
		return config.Device{}, err
	}
	return config.Device{
		ID:       id,
		Name:     args[1],
		Host:     args[2],
		Port:     port,
		User:     args[4],
		Password: args[5],
	}, nil
}
