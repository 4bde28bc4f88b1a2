// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// yai is the operator CLI. Each subcommand sends one frame to the
// kernel or to a workspace engine and prints the reply; vault, audit
// and manifest read local state directly.
//
// Usage:
//
//	yai [flags] ping | handshake | status | noop | reconfigure
//	yai [flags] send <COMMAND|0xID> [payload]
//	yai [flags] storage <method> [params-json]
//	yai [flags] provider <agent> <backend> <input>
//	yai [flags] vault | audit | manifest [diag] | version
//
// A reply whose JSON status is "error" exits with code 2.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/yai-labs/yai/lib/audit"
	"github.com/yai-labs/yai/lib/capability"
	"github.com/yai-labs/yai/lib/codec"
	"github.com/yai-labs/yai/lib/config"
	"github.com/yai-labs/yai/lib/control"
	"github.com/yai-labs/yai/lib/envelope"
	"github.com/yai-labs/yai/lib/layout"
	"github.com/yai-labs/yai/lib/process"
	"github.com/yai-labs/yai/lib/statefile"
	"github.com/yai-labs/yai/lib/vault"
	"github.com/yai-labs/yai/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	configPath   string
	workspace    string
	traceID      string
	role         string
	armed        bool
	root         bool
	timeout      time.Duration
	clientName   string
	capabilities string
}

// client carries the resolved configuration for one invocation.
type client struct {
	options
	layout   layout.Layout
	vaultDir string
	capacity int
	out      io.Writer
	errOut   io.Writer
}

func run(args []string, out, errOut io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("yai", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to the YAML config file (default $"+config.EnvVar+")")
	flagSet.StringVarP(&opts.workspace, "workspace", "w", "system", "target workspace")
	flagSet.StringVar(&opts.traceID, "trace", "", "trace id carried by the request (default generated)")
	flagSet.StringVar(&opts.role, "role", "operator", "caller role: none, user, operator, system")
	flagSet.BoolVar(&opts.armed, "arm", false, "arm the request for irreversible effects")
	flagSet.BoolVar(&opts.root, "root", false, "send to the root control plane instead of the kernel")
	flagSet.DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")
	flagSet.StringVar(&opts.clientName, "name", "yai-cli", "client name sent in a handshake")
	flagSet.StringVar(&opts.capabilities, "caps", "", "capabilities requested in a handshake, e.g. FS_READ,LLM_DIRECT")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		return errors.New("missing command (ping, handshake, status, noop, reconfigure, send, storage, provider, vault, audit, manifest, version)")
	}
	if rest[0] == "version" {
		fmt.Fprintf(out, "yai %s\n", version.Full())
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	c := &client{
		options:  opts,
		layout:   layout.New(cfg.Paths.RunDir),
		vaultDir: cfg.Paths.VaultDir,
		capacity: cfg.Engine.PayloadCapacity,
		out:      out,
		errOut:   errOut,
	}
	if c.traceID == "" {
		c.traceID = fmt.Sprintf("cli-%d-%d", os.Getpid(), time.Now().UnixNano())
	}

	command, args := rest[0], rest[1:]
	switch command {
	case "ping":
		return c.kernel(envelope.CommandPing, nil)
	case "status":
		return c.kernel(envelope.CommandStatus, nil)
	case "noop":
		return c.kernel(envelope.CommandNoop, nil)
	case "reconfigure":
		return c.kernel(envelope.CommandReconfigure, nil)
	case "handshake":
		return c.handshake()
	case "send":
		return c.send(args)
	case "storage":
		return c.storage(args)
	case "provider":
		return c.provider(args)
	case "vault":
		return c.showVault()
	case "audit":
		return c.showAudit()
	case "manifest":
		return c.showManifest(args)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (c *client) newEnvelope(command envelope.CommandID) (envelope.Envelope, error) {
	role, err := parseRole(c.role)
	if err != nil {
		return envelope.Envelope{}, err
	}
	env := envelope.New(command, c.workspace, c.traceID)
	env.Role = role
	if c.armed {
		env.Arming = envelope.ArmingArmed
	}
	return env, nil
}

func (c *client) call(socket string, command envelope.CommandID, payload []byte) ([]byte, error) {
	env, err := c.newEnvelope(command)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	_, reply, err := control.Call(ctx, socket, env, payload, c.capacity)
	if err != nil {
		return nil, fmt.Errorf("%s via %s: %w", command, socket, err)
	}
	return reply, nil
}

func (c *client) kernelSocket() string {
	if c.root {
		return c.layout.RootSocket()
	}
	return c.layout.KernelSocket()
}

func (c *client) kernel(command envelope.CommandID, payload []byte) error {
	reply, err := c.call(c.kernelSocket(), command, payload)
	if err != nil {
		return err
	}
	return c.print(reply)
}

func (c *client) engine(command envelope.CommandID, payload []byte) error {
	reply, err := c.call(c.layout.WorkspaceSocket(c.workspace), command, payload)
	if err != nil {
		return err
	}
	return c.print(reply)
}

func (c *client) handshake() error {
	requested, err := capability.ParseList(c.capabilities)
	if err != nil {
		return err
	}
	payload, err := envelope.HandshakeRequest{
		ClientVersion:         envelope.Version,
		CapabilitiesRequested: uint32(requested),
		ClientName:            c.clientName,
	}.MarshalBinary()
	if err != nil {
		return err
	}
	reply, err := c.call(c.kernelSocket(), envelope.CommandHandshake, payload)
	if err != nil {
		return err
	}
	var ack envelope.HandshakeAck
	if err := ack.UnmarshalBinary(reply); err != nil {
		return fmt.Errorf("decoding handshake ack: %w", err)
	}
	return c.printJSON(struct {
		ServerVersion uint32         `json:"server_version"`
		Granted       capability.Set `json:"capabilities_granted"`
		SessionID     uint32         `json:"session_id"`
		Status        vault.Status   `json:"status"`
	}{ack.ServerVersion, capability.Set(ack.CapabilitiesGranted), ack.SessionID, vault.Status(ack.Status)})
}

// send routes an arbitrary command: RPC commands go to the workspace
// engine, everything else to the kernel.
func (c *client) send(args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return errors.New("usage: yai send <COMMAND|0xID> [payload]")
	}
	command, err := parseCommand(args[0])
	if err != nil {
		return err
	}
	var payload []byte
	if len(args) == 2 {
		payload = []byte(args[1])
	}
	if !envelope.Known(command) {
		fmt.Fprintf(c.errOut, "warning: %s is not a registered command; the engine will move the workspace to ERROR\n", command)
	}
	if envelope.Classify(command).External() {
		return c.engine(command, payload)
	}
	return c.kernel(command, payload)
}

func (c *client) storage(args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return errors.New("usage: yai storage <method> [params-json]")
	}
	request := map[string]any{"method": args[0]}
	if len(args) == 2 {
		request["params"] = json.RawMessage(args[1])
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("encoding storage request: %w", err)
	}
	return c.engine(envelope.CommandStorageRPC, payload)
}

func (c *client) provider(args []string) error {
	if len(args) != 3 {
		return errors.New("usage: yai provider <agent> <backend> <input>")
	}
	payload, err := json.Marshal(map[string]string{"agent_id": args[0], "provider": args[1], "input": args[2]})
	if err != nil {
		return err
	}
	return c.engine(envelope.CommandProviderRPC, payload)
}

// showVault prints a snapshot of every plane of the workspace, read
// without going through the kernel.
func (c *client) showVault() error {
	cluster, err := vault.AttachCluster(c.vaultDir, c.workspace)
	if err != nil {
		return err
	}
	defer cluster.Close()

	snapshots := make([]vault.Snapshot, 0, len(vault.Planes))
	cluster.Each(func(_ vault.Plane, v *vault.Vault) {
		snapshots = append(snapshots, v.Snapshot())
	})
	return c.printJSON(snapshots)
}

func (c *client) showAudit() error {
	records, err := audit.ReadAll(c.layout.AuditLog(c.workspace))
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(c.out)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			return err
		}
	}
	return nil
}

// showManifest prints the workspace boot manifest as JSON, or as CBOR
// diagnostic notation with "diag".
func (c *client) showManifest(args []string) error {
	path := c.layout.Manifest(c.workspace)
	switch {
	case len(args) == 0:
		manifest, found, err := statefile.ReadManifest(path)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no boot manifest at %s (run yai-boot -w %s)", path, c.workspace)
		}
		return c.printJSON(manifest)
	case len(args) == 1 && args[0] == "diag":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading boot manifest: %w", err)
		}
		notation, err := codec.Diagnose(data)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
		fmt.Fprintln(c.out, notation)
		return nil
	default:
		return errors.New("usage: yai manifest [diag]")
	}
}

// print writes a reply body and turns an error status into exit code 2.
func (c *client) print(reply []byte) error {
	fmt.Fprintf(c.out, "%s\n", reply)
	var body struct {
		Status string `json:"status"`
		Code   string `json:"code"`
	}
	if json.Unmarshal(reply, &body) == nil && body.Status == "error" {
		return &process.ExitError{Code: 2, Err: fmt.Errorf("request refused: %s", body.Code)}
	}
	return nil
}

func (c *client) printJSON(value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s\n", data)
	return nil
}

func parseRole(name string) (envelope.Role, error) {
	for _, role := range []envelope.Role{envelope.RoleNone, envelope.RoleUser, envelope.RoleOperator, envelope.RoleSystem} {
		if strings.EqualFold(role.String(), name) {
			return role, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", name)
}

func parseCommand(value string) (envelope.CommandID, error) {
	if command, err := envelope.ParseCommand(strings.ToUpper(value)); err == nil {
		return command, nil
	}
	id, err := strconv.ParseUint(value, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown command %q", value)
	}
	return envelope.CommandID(id), nil
}
