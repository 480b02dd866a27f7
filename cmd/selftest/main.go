// Command selftest spawns the MCP server binary, performs the protocol
// handshake over stdio, and exercises the bug query tools against a live
// ZenTao instance. Exit codes: 0 on success, 1 on protocol or upstream
// failure, 2 when --expected does not match the reported bug total.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/go-faster/errors"

	"zentao-mcp/server/internal/jsonrpc"
)

func main() {
	log.SetFlags(0)

	var (
		serverBin = flag.String("server", "./zentao-mcp", "path to the server binary")
		account   = flag.String("account", "", "account to query (default: the configured session account)")
		expected  = flag.Int("expected", -1, "expected bug total; mismatch exits with code 2")
		timeout   = flag.Duration("timeout", 2*time.Minute, "overall run timeout")
	)
	flag.Parse()

	total, err := run(*serverBin, *account, *timeout)
	if err != nil {
		log.Printf("selftest failed: %v", err)
		os.Exit(1)
	}

	log.Printf("bug total: %d", total)
	if *expected >= 0 && total != *expected {
		log.Printf("expected %d bugs, got %d", *expected, total)
		os.Exit(2)
	}
}

func run(serverBin, account string, timeout time.Duration) (int, error) {
	cmd := exec.Command(serverBin)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return 0, errors.Wrap(err, "stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, errors.Wrap(err, "stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return 0, errors.Wrap(err, "start server")
	}
	defer func() {
		stdin.Close()
		cmd.Process.Kill()
		cmd.Wait()
	}()

	timer := time.AfterFunc(timeout, func() {
		log.Printf("timed out after %s", timeout)
		cmd.Process.Kill()
	})
	defer timer.Stop()

	c := &client{enc: json.NewEncoder(stdin), scanner: bufio.NewScanner(stdout)}
	c.scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	var init struct {
		ProtocolVersion string `json:"protocolVersion"`
		ServerInfo      struct {
			Name string `json:"name"`
		} `json:"serverInfo"`
	}
	if err := c.call("initialize", map[string]any{
		"protocolVersion": "2025-03-26",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "selftest", "version": "0.1.0"},
	}, &init); err != nil {
		return 0, errors.Wrap(err, "initialize")
	}
	log.Printf("connected to %s (protocol %s)", init.ServerInfo.Name, init.ProtocolVersion)

	if err := c.notify("notifications/initialized"); err != nil {
		return 0, err
	}

	var toolsList struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := c.call("tools/list", map[string]any{}, &toolsList); err != nil {
		return 0, errors.Wrap(err, "tools/list")
	}
	names := make(map[string]bool, len(toolsList.Tools))
	for _, t := range toolsList.Tools {
		names[t.Name] = true
	}
	for _, want := range []string{"zentao_products_list", "zentao_bugs_list", "zentao_bugs_stats", "zentao_bugs_mine"} {
		if !names[want] {
			return 0, errors.Errorf("tool %s not advertised", want)
		}
	}
	log.Printf("tools/list: %d tools", len(toolsList.Tools))

	args := map[string]any{}
	if account != "" {
		args["account"] = account
	}
	text, isError, err := c.callTool("zentao_bugs_mine", args)
	if err != nil {
		return 0, errors.Wrap(err, "zentao_bugs_mine")
	}
	if isError {
		return 0, errors.Errorf("tool error: %s", text)
	}

	var envelope struct {
		Status int    `json:"status"`
		Msg    string `json:"msg"`
		Result struct {
			Account string `json:"account"`
			Total   int    `json:"total"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		return 0, errors.Wrap(err, "decode envelope")
	}
	if envelope.Status != 1 {
		return 0, errors.Errorf("upstream failure: %s", envelope.Msg)
	}

	log.Printf("account %s", envelope.Result.Account)
	return envelope.Result.Total, nil
}

type client struct {
	enc     *json.Encoder
	scanner *bufio.Scanner
	nextID  int
}

func (c *client) notify(method string) error {
	return c.enc.Encode(jsonrpc.Request{JSONRPC: "2.0", Method: method})
}

func (c *client) call(method string, params any, result any) error {
	c.nextID++
	id := c.nextID
	if err := c.enc.Encode(jsonrpc.Request{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return errors.Wrap(err, "send")
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return errors.Wrap(err, "read")
		}
		return errors.New("server closed the stream")
	}

	var resp struct {
		ID     any             `json:"id"`
		Result json.RawMessage `json:"result"`
		Error  *jsonrpc.Error  `json:"error"`
	}
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return errors.Wrap(err, "decode response")
	}
	if resp.Error != nil {
		return errors.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal(resp.Result, result)
}

func (c *client) callTool(name string, args map[string]any) (text string, isError bool, err error) {
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := c.call("tools/call", map[string]any{"name": name, "arguments": args}, &result); err != nil {
		return "", false, err
	}
	if len(result.Content) == 0 {
		return "", false, fmt.Errorf("empty content")
	}
	return result.Content[0].Text, result.IsError, nil
}
