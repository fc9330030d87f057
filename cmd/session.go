package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/six502/emuctl/internal/adapters/emuhttp"
	"github.com/six502/emuctl/internal/application"
	"github.com/six502/emuctl/internal/domain"
	"github.com/spf13/cobra"
)

func newSessionCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Operate on individual emulator instances",
	}

	cmd.AddCommand(
		newSessionCreateCmd(app),
		newSessionListCmd(app),
		newSessionDeleteCmd(app),
		newSessionStateCmd(app),
		newSessionStepCmd(app),
		newSessionExecCmd(app),
		newSessionLoadCmd(app),
		newSessionPeekCmd(app),
		newSessionPokeCmd(app),
	)

	return cmd
}

func newSessionCreateCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a fresh emulator instance and print its id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := emuhttp.OpenSession(cmd.Context(), app.transport)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), session.ID)
			return err
		},
	}
}

func newSessionListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live emulator instances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snapshots, ids, err := emuhttp.ListSessions(cmd.Context(), app.transport)
			if err != nil {
				return err
			}

			if len(ids) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no live instances")
				return err
			}

			for i, id := range ids {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", id, snapshots[i]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newSessionDeleteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an emulator instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session := emuhttp.AttachSession(app.transport, domain.SessionID(args[0]))
			if err := session.Delete(cmd.Context()); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", session.ID)
			return err
		},
	}
}

func newSessionStateCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "state <id>",
		Short: "Print the CPU state of an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session := emuhttp.AttachSession(app.transport, domain.SessionID(args[0]))
			snapshot, err := session.State(cmd.Context())
			if err != nil {
				return err
			}

			return writeSnapshot(cmd, snapshot, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the state as JSON")

	return cmd
}

func newSessionStepCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "step <id>",
		Short: "Execute one instruction and print the resulting state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session := emuhttp.AttachSession(app.transport, domain.SessionID(args[0]))
			snapshot, err := session.Step(cmd.Context())
			if err != nil {
				return err
			}

			return writeSnapshot(cmd, snapshot, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the state as JSON")

	return cmd
}

func newSessionExecCmd(app *app) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "exec <id>",
		Short: "Execute up to N instructions; an early halt is normal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session := emuhttp.AttachSession(app.transport, domain.SessionID(args[0]))
			result, err := session.ExecuteN(cmd.Context(), steps)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "executed %d step(s), halted=%v\n%s\n",
				result.StepsExecuted, result.Halted, result.FinalState)
			return err
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 20, "Maximum instructions to execute")

	return cmd
}

func newSessionLoadCmd(app *app) *cobra.Command {
	var (
		programName string
		addressSpec string
		reset       bool
	)

	cmd := &cobra.Command{
		Use:   "load <id>",
		Short: "Load a catalogue program into an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program, ok := application.ProgramByName(programName)
			if !ok {
				return fmt.Errorf("unknown program %q, have: %s", programName, programNames())
			}

			address, err := parseAddress(addressSpec)
			if err != nil {
				return err
			}

			session := emuhttp.AttachSession(app.transport, domain.SessionID(args[0]))
			if err := session.Load(cmd.Context(), address, program.Bytes); err != nil {
				return err
			}
			if reset {
				if err := session.SetResetVector(cmd.Context(), address); err != nil {
					return err
				}
				if err := session.Reset(cmd.Context()); err != nil {
					return err
				}
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "loaded %s (%d bytes) at $%04X\n",
				program.Name, len(program.Bytes), address)
			return err
		},
	}

	cmd.Flags().StringVar(&programName, "program", "", "Catalogue program name")
	cmd.Flags().StringVar(&addressSpec, "address", "0x8000", "Load address")
	cmd.Flags().BoolVar(&reset, "reset", false, "Point the reset vector at the load address and reset")
	_ = cmd.MarkFlagRequired("program")

	return cmd
}

func newSessionPeekCmd(app *app) *cobra.Command {
	var (
		addressSpec string
		length      int
	)

	cmd := &cobra.Command{
		Use:   "peek <id>",
		Short: "Read a memory range and print it as a hex dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := parseAddress(addressSpec)
			if err != nil {
				return err
			}

			session := emuhttp.AttachSession(app.transport, domain.SessionID(args[0]))
			data, err := session.ReadMemory(cmd.Context(), address, length)
			if err != nil {
				return err
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), hexDump(address, data))
			return err
		},
	}

	cmd.Flags().StringVar(&addressSpec, "address", "", "Start address")
	cmd.Flags().IntVar(&length, "length", 16, "Number of bytes to read")
	_ = cmd.MarkFlagRequired("address")

	return cmd
}

func newSessionPokeCmd(app *app) *cobra.Command {
	var (
		addressSpec string
		byteSpec    string
	)

	cmd := &cobra.Command{
		Use:   "poke <id>",
		Short: "Write bytes into an instance's memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := parseAddress(addressSpec)
			if err != nil {
				return err
			}
			data, err := parseBytes(byteSpec)
			if err != nil {
				return err
			}

			session := emuhttp.AttachSession(app.transport, domain.SessionID(args[0]))
			if err := session.WriteMemory(cmd.Context(), address, data); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d byte(s) at $%04X\n", len(data), address)
			return err
		},
	}

	cmd.Flags().StringVar(&addressSpec, "address", "", "Start address")
	cmd.Flags().StringVar(&byteSpec, "bytes", "", "Hex bytes, e.g. \"A9 10 00\"")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("bytes")

	return cmd
}

func writeSnapshot(cmd *cobra.Command, snapshot domain.CPUSnapshot, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	}

	_, err := fmt.Fprintln(cmd.OutOrStdout(), snapshot)
	return err
}

// parseAddress accepts 0x-prefixed hex or plain decimal and rejects
// anything outside the 16-bit address space.
func parseAddress(spec string) (uint16, error) {
	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return 0, fmt.Errorf("address is empty")
	}

	value, err := strconv.ParseUint(trimmed, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("parse address %q: %w", spec, err)
	}

	return uint16(value), nil
}

// parseBytes reads hex byte tokens separated by spaces or commas.
func parseBytes(spec string) ([]byte, error) {
	fields := strings.FieldsFunc(spec, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("no bytes given")
	}

	data := make([]byte, 0, len(fields))
	for _, field := range fields {
		token := strings.TrimPrefix(strings.ToLower(field), "0x")
		value, err := strconv.ParseUint(token, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("parse byte %q: %w", field, err)
		}
		data = append(data, byte(value))
	}

	return data, nil
}

func hexDump(address uint16, data []byte) string {
	var b strings.Builder
	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}

		fmt.Fprintf(&b, "%04X:", int(address)+i)
		for _, v := range data[i:end] {
			fmt.Fprintf(&b, " %02X", v)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func programNames() string {
	names := make([]string, 0, len(application.Catalogue))
	for _, program := range application.Catalogue {
		names = append(names, program.Name)
	}
	return strings.Join(names, ", ")
}
