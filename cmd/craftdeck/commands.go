package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/craftdeck/craftdeck/pkg/client"
)

type command struct {
	api *APIFlags
}

func (c command) newClient() (*client.Client, context.Context, context.CancelFunc, error) {
	cfg := client.DefaultConfig()
	if c.api.APIUrl != "" {
		cfg.BaseURL = c.api.APIUrl
	}
	if c.api.APITimeout > 0 {
		cfg.Timeout = c.api.APITimeout
	}
	cl := client.New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	if !cl.IsReachable(ctx) {
		cancel()
		return nil, nil, nil, fmt.Errorf("daemon not reachable at %s - start it first with 'craftdeck serve'", cfg.BaseURL)
	}
	return cl, ctx, cancel, nil
}

func (c command) Start() error {
	cl, ctx, cancel, err := c.newClient()
	if err != nil {
		return err
	}
	defer cancel()
	return cl.Start(ctx)
}

func (c command) Stop() error {
	cl, ctx, cancel, err := c.newClient()
	if err != nil {
		return err
	}
	defer cancel()
	return cl.Stop(ctx)
}

func (c command) Restart() error {
	cl, ctx, cancel, err := c.newClient()
	if err != nil {
		return err
	}
	defer cancel()
	return cl.Restart(ctx)
}

func (c command) Send(cmd string) error {
	cl, ctx, cancel, err := c.newClient()
	if err != nil {
		return err
	}
	defer cancel()
	return cl.SendCommand(ctx, cmd)
}

func (c command) Status() error {
	cl, ctx, cancel, err := c.newClient()
	if err != nil {
		return err
	}
	defer cancel()
	st, err := cl.Status(ctx)
	if err != nil {
		return err
	}
	printJSON(st)
	return nil
}

func (c command) Console() error {
	cl, ctx, cancel, err := c.newClient()
	if err != nil {
		return err
	}
	defer cancel()
	lines, err := cl.Console(ctx)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

func (c command) History(limit int) error {
	cl, ctx, cancel, err := c.newClient()
	if err != nil {
		return err
	}
	defer cancel()
	recs, err := cl.History(ctx, limit)
	if err != nil {
		return err
	}
	printJSON(recs)
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
