package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/airosctl/internal/airos"
	"github.com/muurk/airosctl/internal/config"
	"github.com/muurk/airosctl/internal/discovery"
)

// Command flags
var (
	deviceHost  string
	username    string
	password    string
	timeoutSecs int
	jsonOutput  bool
	scanWindow  int
	useMDNS     bool
	findTarget  string
	stationMAC  string
	forceCheck  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceHost, "host", "", "Device address or URL")
	rootCmd.PersistentFlags().StringVarP(&username, "username", "u", "", "Login username (default from registry, else \"ubnt\")")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", "", "Login password (prompted if not given; AIROS_PASSWORD env also works)")
	rootCmd.PersistentFlags().IntVar(&timeoutSecs, "timeout", 10, "HTTP request timeout in seconds")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output machine-readable JSON")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(stakickCmd)
	rootCmd.AddCommand(provmodeCmd)
	rootCmd.AddCommand(warningsCmd)
	rootCmd.AddCommand(updateCmd)
}

// newDeviceClient builds an authenticated-capable client from the flags
// and the device registry. The probed dialect is reused from the registry
// when the device has been seen before.
func newDeviceClient() (*airos.Client, *config.Registry, error) {
	if deviceHost == "" {
		return nil, nil, fmt.Errorf("--host is required")
	}

	registry, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	user := username
	if user == "" {
		user = registry.Preferences.DefaultUsername
	}
	if user == "" {
		user = airos.DefaultUsername
	}

	pass := password
	if pass == "" {
		pass = os.Getenv("AIROS_PASSWORD")
	}
	if pass == "" {
		pass, err = promptPassword(fmt.Sprintf("Password for %s@%s: ", user, deviceHost))
		if err != nil {
			return nil, nil, err
		}
	}

	client := airos.NewClient(deviceHost, user, pass)
	client.SetTimeout(time.Duration(timeoutSecs) * time.Second)

	// Reuse a previously probed dialect when we have one for this host
	for _, device := range registry.Devices {
		if device.Host == deviceHost && device.Dialect != "" {
			client.SetDialect(airos.Dialect{
				Generation: airos.ParseGeneration(device.Dialect),
				FormLogin:  device.Dialect == "v6",
			})
			break
		}
	}

	return client, registry, nil
}

// rememberDevice stores the session outcome in the registry so the next
// invocation can skip the probe.
func rememberDevice(registry *config.Registry, client *airos.Client, status *airos.DeviceStatus) {
	if status == nil || status.Derived.MAC == "" {
		return
	}
	registry.Remember(status.Derived.MAC, func(d *config.Device) {
		d.Host = deviceHost
		d.Username = client.Username
		d.Model = status.Host.DeviceModel
		if dialect := client.Dialect(); dialect != nil {
			d.Dialect = dialect.Generation.String()
		}
	})
	if err := registry.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not save device registry: %v\n", err)
	}
}

func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no password given and stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(raw), nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover airOS devices on the local network",
	Long: `Broadcast a discovery probe and list the devices that reply.

Discovery uses the vendor UDP protocol on port 10001. On segments that
filter broadcast, --mdns adds a best-effort mDNS sweep.`,
	Example: `  # Default 3-second listening window
  airosctl discover

  # Longer window for slow links, plus mDNS
  airosctl discover --window 10 --mdns`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().IntVar(&scanWindow, "window", 3, "Listening window in seconds")
	discoverCmd.Flags().BoolVar(&useMDNS, "mdns", false, "Also sweep mDNS for airOS web UIs")
	discoverCmd.Flags().StringVar(&findTarget, "find", "", "Return only the device with this IP or MAC address")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	scanner := discovery.NewScanner()
	scanner.Window = time.Duration(scanWindow) * time.Second

	if findTarget != "" {
		record, err := scanner.Locate(cmd.Context(), findTarget)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(record)
		}
		fmt.Println(record)
		return nil
	}

	records, err := scanner.Scan(cmd.Context())
	if err != nil {
		return err
	}

	if useMDNS {
		extra, err := discovery.MDNSSweep(cmd.Context(), scanner.Window)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: mdns sweep failed: %v\n", err)
		}
		seen := make(map[string]bool)
		for _, r := range records {
			seen[r.Addr.String()] = true
		}
		for _, r := range extra {
			if !seen[r.Addr.String()] {
				records = append(records, r)
			}
		}
	}

	if jsonOutput {
		return printJSON(records)
	}

	if len(records) == 0 {
		fmt.Println("No devices found.")
		return nil
	}
	for _, r := range records {
		fmt.Printf("%-16s %-18s %-24s %-14s up %s\n",
			r.Addr, r.MAC, r.Model, r.Firmware, r.Uptime)
	}

	// Remember what we saw for later sessions
	registry, err := config.Load()
	if err != nil {
		return nil
	}
	for _, r := range records {
		if len(r.MAC) == 0 {
			continue
		}
		addr := r.Addr.String()
		model := r.Model
		registry.Remember(r.MAC.String(), func(d *config.Device) {
			d.Host = addr
			if model != "" {
				d.Model = model
			}
		})
	}
	_ = registry.Save()
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Poll and print the device status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, registry, err := newDeviceClient()
		if err != nil {
			return err
		}
		defer client.Logout(context.Background())

		status, err := client.Status(cmd.Context())
		if err != nil {
			return err
		}
		rememberDevice(registry, client, status)

		if jsonOutput {
			return printJSON(status)
		}
		printStatus(status, client.Generation())
		return nil
	},
}

func printStatus(status *airos.DeviceStatus, gen airos.Generation) {
	fmt.Printf("%s (%s, firmware %s, airOS %s)\n",
		status.Host.Hostname, status.Host.DeviceModel, status.Host.FirmwareVersion, gen)
	fmt.Printf("  mode:      %s (%s)\n", status.Wireless.Mode, status.Wireless.IEEEMode)
	fmt.Printf("  mac:       %s (%s)\n", status.Derived.MAC, status.Derived.MACInterface)
	if status.Wireless.FrequencyMHz != nil {
		fmt.Printf("  frequency: %d MHz\n", *status.Wireless.FrequencyMHz)
	}
	if status.Wireless.SignalDBm != nil {
		fmt.Printf("  signal:    %d dBm\n", *status.Wireless.SignalDBm)
	}
	if status.Host.CPULoad != nil {
		fmt.Printf("  cpu:       %.1f%%\n", *status.Host.CPULoad)
	}
	fmt.Printf("  stations:  %d\n", len(status.Wireless.Stations))
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live status from a v8 device",
	Long:  `Subscribe to the live status WebSocket feed (v8 firmware only) and print a line per frame until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, registry, err := newDeviceClient()
		if err != nil {
			return err
		}
		defer client.Logout(context.Background())

		first := true
		return client.Stream(cmd.Context(), func(status *airos.DeviceStatus) {
			if first {
				rememberDevice(registry, client, status)
				first = false
			}
			if jsonOutput {
				_ = printJSON(status)
				return
			}
			signal := "n/a"
			if status.Wireless.SignalDBm != nil {
				signal = fmt.Sprintf("%d dBm", *status.Wireless.SignalDBm)
			}
			fmt.Printf("%s signal=%s stations=%d\n",
				time.Now().Format(time.TimeOnly), signal, len(status.Wireless.Stations))
		})
	},
}

var stakickCmd = &cobra.Command{
	Use:   "stakick",
	Short: "Force a connected station to reconnect",
	RunE: func(cmd *cobra.Command, args []string) error {
		if stationMAC == "" {
			return fmt.Errorf("--sta is required")
		}
		client, _, err := newDeviceClient()
		if err != nil {
			return err
		}
		defer client.Logout(context.Background())

		if err := client.Stakick(cmd.Context(), stationMAC); err != nil {
			return err
		}
		fmt.Printf("Station %s kicked.\n", stationMAC)
		return nil
	},
}

func init() {
	stakickCmd.Flags().StringVar(&stationMAC, "sta", "", "MAC address of the station to kick")
}

var provmodeCmd = &cobra.Command{
	Use:   "provmode [on|off]",
	Short: "Enable or disable provisioning mode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var active bool
		switch args[0] {
		case "on":
			active = true
		case "off":
			active = false
		default:
			return fmt.Errorf("argument must be \"on\" or \"off\", got %q", args[0])
		}

		client, _, err := newDeviceClient()
		if err != nil {
			return err
		}
		defer client.Logout(context.Background())

		if err := client.Provmode(cmd.Context(), active); err != nil {
			return err
		}
		fmt.Printf("Provisioning mode: %s\n", args[0])
		return nil
	},
}

var warningsCmd = &cobra.Command{
	Use:   "warnings",
	Short: "Fetch the device warning list (v8 firmware)",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newDeviceClient()
		if err != nil {
			return err
		}
		defer client.Logout(context.Background())

		warnings, err := client.DeviceWarnings(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(warnings)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Firmware update operations",
}

func init() {
	updateCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Check for a firmware update",
		RunE:  runUpdateOp(func(c *airos.Client, ctx context.Context) (map[string]any, error) { return c.UpdateCheck(ctx, forceCheck) }),
	})
	updateCmd.AddCommand(&cobra.Command{
		Use:   "download",
		Short: "Start downloading the new firmware",
		RunE:  runUpdateOp((*airos.Client).Download),
	})
	updateCmd.AddCommand(&cobra.Command{
		Use:   "progress",
		Short: "Show firmware download progress",
		RunE:  runUpdateOp((*airos.Client).Progress),
	})
	updateCmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Flash the downloaded firmware",
		RunE:  runUpdateOp((*airos.Client).Install),
	})
	updateCmd.PersistentFlags().BoolVar(&forceCheck, "force", false, "Force a fresh check against the update server")
}

func runUpdateOp(op func(*airos.Client, context.Context) (map[string]any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		client, _, err := newDeviceClient()
		if err != nil {
			return err
		}
		defer client.Logout(context.Background())

		result, err := op(client, cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(result)
	}
}
