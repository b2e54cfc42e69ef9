package cmd

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Output flags
	JSON   bool
	Format string

	// Clean and init flags
	DryRun bool
	Force  bool

	// Watch flags
	NotifyAddr string
}

// Output formats accepted by --format.
var validFormats = []string{"text", "short", "detailed", "json"}

// AddStandardFlags adds the named flag groups to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "output":
			cmd.Flags().BoolVar(&flags.JSON, "json", false, "Print the result as JSON")
		case "format":
			cmd.Flags().StringVarP(&flags.Format, "format", "f", "text",
				"Output format ("+strings.Join(validFormats, "|")+")")
		case "dry-run":
			cmd.Flags().BoolVarP(&flags.DryRun, "dry-run", "d", false, "Show what would be deleted without deleting")
		case "force":
			cmd.Flags().BoolVar(&flags.Force, "force", false, "Overwrite an existing file")
		case "notify":
			cmd.Flags().StringVar(&flags.NotifyAddr, "notify-addr", "",
				"Serve build events over WebSocket on this address (e.g. localhost:35729)")
			AddFlagValidation(cmd.Flags(), "notify-addr", ValidateListenAddr)
		}
	}

	return flags
}

// ValidateFlags validates flag combinations and values
func (f *StandardFlags) ValidateFlags() error {
	if f.Format != "" {
		valid := false
		for _, format := range validFormats {
			if f.Format == format {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid output format %s, must be one of: %s",
				f.Format, strings.Join(validFormats, ", "))
		}
	}

	if f.NotifyAddr != "" {
		if err := ValidateListenAddr(f.NotifyAddr); err != nil {
			return err
		}
	}

	return nil
}

// AddFlagValidation validates a flag's value whenever it is set
func AddFlagValidation(flags *pflag.FlagSet, flagName string, validator func(string) error) {
	flag := flags.Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidateListenAddr checks a host:port listen address. An empty host binds
// every interface; port 0 picks a free port.
func ValidateListenAddr(addr string) error {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}

	return nil
}
