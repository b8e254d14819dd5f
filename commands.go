package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tournevent/easyparcel/pkg/easyparcel"
	"gopkg.in/yaml.v3"
)

type rateFlags struct {
	from, to easyparcel.Address
	weight   float64
	width    float64
	length   float64
	height   float64
	file     string
}

func addClientCommands(root *cobra.Command) {
	root.AddCommand(
		&cobra.Command{
			Use:   "balance",
			Short: "Show the account credit balance",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withGateway(cmd, func(gw *easyparcel.Client) (*easyparcel.Result, error) {
					return gw.CheckBalance(cmd.Context())
				})
			},
		},
		ratesCommand(),
		submitCommand(),
		&cobra.Command{
			Use:   "pay ORDER_NO...",
			Short: "Pay for one or more submitted orders",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withGateway(cmd, func(gw *easyparcel.Client) (*easyparcel.Result, error) {
					if len(args) == 1 {
						return gw.PayOrder(cmd.Context(), args[0])
					}
					return gw.PayBulkOrders(cmd.Context(), args)
				})
			},
		},
		&cobra.Command{
			Use:   "couriers",
			Short: "List couriers",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withGateway(cmd, func(gw *easyparcel.Client) (*easyparcel.Result, error) {
					return gw.GetCourierList(cmd.Context())
				})
			},
		},
		&cobra.Command{
			Use:   "categories",
			Short: "List parcel categories",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withGateway(cmd, func(gw *easyparcel.Client) (*easyparcel.Result, error) {
					return gw.GetParcelCategoryList(cmd.Context())
				})
			},
		},
		&cobra.Command{
			Use:   "dropoff COURIER POSTCODE",
			Short: "List a courier's drop-off points near a postcode",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withGateway(cmd, func(gw *easyparcel.Client) (*easyparcel.Result, error) {
					return gw.GetCourierDropoff(cmd.Context(), args[0], args[1])
				})
			},
		},
		callCommand(),
	)
}

// shipment builds a rate-check payload from the flags. Flags left empty stay
// unset so PrepareShipment can default them.
func (f rateFlags) shipment() easyparcel.Payload {
	return easyparcel.NewShipment().
		From(f.from).
		To(f.to).
		WithDimensions(f.weight, f.width, f.length, f.height).
		Build()
}

func ratesCommand() *cobra.Command {
	var f rateFlags
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Quote a shipment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGateway(cmd, func(gw *easyparcel.Client) (*easyparcel.Result, error) {
				if f.file != "" {
					one, many, err := readPayloads(f.file)
					if err != nil {
						return nil, err
					}
					if many != nil {
						return gw.GetBulkRates(cmd.Context(), many)
					}
					shipment, err := gw.PrepareShipment(one)
					if err != nil {
						return nil, err
					}
					return gw.GetRates(cmd.Context(), shipment)
				}

				shipment, err := gw.PrepareShipment(f.shipment())
				if err != nil {
					return nil, err
				}
				return gw.GetRates(cmd.Context(), shipment)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.from.Postcode, "pick-code", "", "pickup postcode")
	flags.StringVar(&f.from.State, "pick-state", "", "pickup state")
	flags.StringVar(&f.from.Country, "pick-country", "", "pickup country code")
	flags.StringVar(&f.to.Postcode, "send-code", "", "delivery postcode")
	flags.StringVar(&f.to.State, "send-state", "", "delivery state")
	flags.StringVar(&f.to.Country, "send-country", "", "delivery country code")
	flags.Float64Var(&f.weight, "weight", 0, "weight in kg")
	flags.Float64Var(&f.width, "width", 0, "width in cm")
	flags.Float64Var(&f.length, "length", 0, "length in cm")
	flags.Float64Var(&f.height, "height", 0, "height in cm")
	flags.StringVarP(&f.file, "file", "f", "", "YAML or JSON file with one shipment or a list")
	cmd.MarkFlagsMutuallyExclusive("file", "pick-code")
	cmd.MarkFlagsMutuallyExclusive("file", "weight")
	return cmd
}

func submitCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit one order or a list of orders from a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGateway(cmd, func(gw *easyparcel.Client) (*easyparcel.Result, error) {
				one, many, err := readPayloads(file)
				if err != nil {
					return nil, err
				}
				if many == nil {
					many = []easyparcel.Payload{one}
				}

				orders := make([]easyparcel.Payload, len(many))
				for i, p := range many {
					if _, ok := p["reference_number"]; !ok {
						p["reference_number"] = "ORDER-" + uuid.New().String()
					}
					order, err := gw.PrepareOrder(p)
					if err != nil {
						return nil, fmt.Errorf("order %d: %w", i, err)
					}
					orders[i] = order
				}

				if len(orders) == 1 {
					return gw.SubmitOrder(cmd.Context(), orders[0])
				}
				return gw.SubmitBulkOrders(cmd.Context(), orders)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML or JSON file with one order or a list (- for stdin)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func callCommand() *cobra.Command {
	var params []string
	var raw bool
	cmd := &cobra.Command{
		Use:   "call OPERATION",
		Short: "Invoke an operation by name, or a raw action code with --raw",
		Long:  "Invoke an operation by name. Known operations: " + strings.Join(easyparcel.Operations(), ", ") + ".",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := easyparcel.Payload{}
			for _, kv := range params {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("invalid --param %q, want key=value", kv)
				}
				payload[k] = v
			}
			return withGateway(cmd, func(gw *easyparcel.Client) (*easyparcel.Result, error) {
				if raw {
					return gw.CallAction(cmd.Context(), args[0], payload)
				}
				return gw.Call(cmd.Context(), args[0], payload)
			})
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "form parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&raw, "raw", false, "treat OPERATION as a raw ac action code")
	return cmd
}

// withGateway builds a client from the environment, runs fn and prints the
// result. A remote API error is returned so the process exits non-zero.
func withGateway(cmd *cobra.Command, fn func(gw *easyparcel.Client) (*easyparcel.Result, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.LogLevel, "stderr")
	if err != nil {
		return err
	}
	defer logger.Sync()

	gw, err := initGateway(cfg, logger, nil, nil)
	if err != nil {
		return err
	}

	res, err := fn(gw)
	if err != nil {
		return err
	}
	if err := printResult(cmd.OutOrStdout(), globalOpts.output, res); err != nil {
		return err
	}
	return res.Err()
}

func printResult(w io.Writer, format string, res *easyparcel.Result) error {
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(res)
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// readPayloads reads one payload or a list of payloads from a YAML or JSON
// file. "-" reads stdin.
func readPayloads(path string) (easyparcel.Payload, []easyparcel.Payload, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	switch v := doc.(type) {
	case map[string]any:
		return easyparcel.Payload(v), nil, nil
	case []any:
		many := make([]easyparcel.Payload, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, nil, fmt.Errorf("parsing %s: item %d is not a mapping", path, i)
			}
			many = append(many, easyparcel.Payload(m))
		}
		return nil, many, nil
	default:
		return nil, nil, fmt.Errorf("parsing %s: expected a mapping or a list", path)
	}
}
