package cmd

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/alphabill-org/partdist/hybridtime"
	"github.com/alphabill-org/partdist/keyvaluedb/boltdb"
	pd "github.com/alphabill-org/partdist/partitiondistribution"
	"github.com/alphabill-org/partdist/partitions"
	"github.com/alphabill-org/partdist/versioned"
)

const (
	formatJSON   = "json"
	formatYAML   = "yaml"
	formatBase64 = "base64"

	storeBucket = "partitions"
)

type (
	storeFlags struct {
		base      *baseConfiguration
		DBFile    string
		Partition pd.PartitionID
	}

	chainOutput struct {
		Partition pd.PartitionID      `json:"partition"`
		Revision  uint64              `json:"revision"`
		Chain     pd.AssignmentsChain `json:"chain"`
	}
)

func newChainCmd(config *baseConfiguration) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "chain",
		Short: "Tools for working with assignments chains",
	}
	cmd.AddCommand(
		chainEncodeCmd(),
		chainDecodeCmd(),
		chainShowCmd(config),
		chainListCmd(config),
		chainAppendCmd(config),
		chainImportCmd(config),
		chainDropCmd(config),
		chainVerifyCmd(config),
	)
	return cmd
}

func chainEncodeCmd() *cobra.Command {
	var input, output string
	var cmd = &cobra.Command{
		Use:   "encode",
		Short: "Encodes chain document (yaml or json) into binary form",
		Long:  "Encodes chain document (yaml or json) into the current binary format. The result is written to the output file or printed as base64 when output is not given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(filepath.Clean(input))
			if err != nil {
				return fmt.Errorf("opening chain document: %w", err)
			}
			defer f.Close()
			chain, err := readChainDocument(f)
			if err != nil {
				return err
			}
			data, err := versioned.ToBytes(chain, pd.AssignmentsChainSerializer{})
			if err != nil {
				return fmt.Errorf("encoding chain: %w", err)
			}
			if output == "" {
				consoleWriter.Println(base64.StdEncoding.EncodeToString(data))
				return nil
			}
			if err := os.WriteFile(output, data, 0600); err != nil {
				return fmt.Errorf("writing encoded chain: %w", err)
			}
			consoleWriter.Println(fmt.Sprintf("Chain of %d snapshots written to %s", chain.Len(), output))
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "chain document (yaml or json) file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write the binary chain into")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func chainDecodeCmd() *cobra.Command {
	var input, b64, format string
	var cmd = &cobra.Command{
		Use:   "decode",
		Short: "Decodes binary chain (of any supported version)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			switch {
			case b64 != "" && input != "":
				return errors.New("only one of the flags --base64 and --input can be used")
			case b64 != "":
				if data, err = base64.StdEncoding.DecodeString(b64); err != nil {
					return fmt.Errorf("decoding base64: %w", err)
				}
			case input != "":
				if data, err = os.ReadFile(filepath.Clean(input)); err != nil {
					return fmt.Errorf("reading input: %w", err)
				}
			default:
				return errors.New("either --base64 or --input flag must be set")
			}

			chain, err := versioned.FromBytes(data, pd.AssignmentsChainSerializer{})
			if err != nil {
				return fmt.Errorf("decoding chain: %w", err)
			}
			return printChain(format, chain, chain)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "file containing binary chain")
	cmd.Flags().StringVar(&b64, "base64", "", "base64 encoded binary chain")
	cmd.Flags().StringVarP(&format, "format", "f", formatYAML, "output format, one of: yaml, json, base64")
	return cmd
}

func chainShowCmd(config *baseConfiguration) *cobra.Command {
	flags := &storeFlags{base: config}
	var format string
	var cmd = &cobra.Command{
		Use:   "show",
		Short: "Shows the chain of the partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withStore(func(store *partitions.ChainStore) error {
				chain, rev, err := store.Chain(cmd.Context(), flags.Partition)
				if err != nil {
					return err
				}
				return printChain(format, chainOutput{Partition: flags.Partition, Revision: rev, Chain: chain}, chain)
			})
		},
	}
	flags.addStoreFlags(cmd, true)
	cmd.Flags().StringVarP(&format, "format", "f", formatYAML, "output format, one of: yaml, json, base64")
	return cmd
}

func chainListCmd(config *baseConfiguration) *cobra.Command {
	flags := &storeFlags{base: config}
	var zone uint32
	var cmd = &cobra.Command{
		Use:   "list",
		Short: "Lists partitions in the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withStore(func(store *partitions.ChainStore) error {
				var ids []pd.PartitionID
				var err error
				if cmd.Flags().Changed("zone") {
					ids, err = store.ZonePartitions(cmd.Context(), zone)
				} else {
					ids, err = store.Partitions(cmd.Context())
				}
				if err != nil {
					return err
				}
				for _, id := range ids {
					chain, rev, err := store.Chain(cmd.Context(), id)
					if err != nil {
						consoleWriter.Println(fmt.Sprintf("%s\terror: %v", id, err))
						continue
					}
					consoleWriter.Println(fmt.Sprintf("%s\trevision %d\t%d snapshots", id, rev, chain.Len()))
				}
				return nil
			})
		},
	}
	flags.addStoreFlags(cmd, false)
	cmd.Flags().Uint32Var(&zone, "zone", 0, "list only the partitions of the zone")
	return cmd
}

func chainAppendCmd(config *baseConfiguration) *cobra.Command {
	flags := &storeFlags{base: config}
	var peers, learners []string
	var force, fromReset bool
	var timestamp int64
	var cmd = &cobra.Command{
		Use:   "append",
		Short: "Appends new assignments snapshot to the chain of the partition",
		Long:  "Appends new assignments snapshot to the chain of the partition, the partition is created when it doesn't exist. Snapshot is timestamped using hybrid clock unless --timestamp is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes := make([]pd.Assignment, 0, len(peers)+len(learners))
			for _, id := range peers {
				a, err := pd.ForPeer(id)
				if err != nil {
					return fmt.Errorf("peer %q: %w", id, err)
				}
				nodes = append(nodes, a)
			}
			for _, id := range learners {
				a, err := pd.ForLearner(id)
				if err != nil {
					return fmt.Errorf("learner %q: %w", id, err)
				}
				nodes = append(nodes, a)
			}

			return flags.withStore(func(store *partitions.ChainStore) error {
				ctx := cmd.Context()
				var ts hybridtime.Timestamp
				if cmd.Flags().Changed("timestamp") {
					ts = hybridtime.FromLong(timestamp)
				} else {
					clock := hybridtime.NewClock()
					chain, _, err := store.Chain(ctx, flags.Partition)
					switch {
					case errors.Is(err, partitions.ErrPartitionNotFound):
					case err != nil:
						return err
					default:
						if last, ok := chain.Last(); ok {
							clock.Update(last.Timestamp())
						}
					}
					ts = clock.Now()
				}

				a, err := newSnapshot(nodes, ts, force, fromReset)
				if err != nil {
					return err
				}
				chain, rev, err := store.Append(ctx, flags.Partition, a)
				if err != nil {
					return err
				}
				consoleWriter.Println(fmt.Sprintf("Appended %s", a))
				consoleWriter.Println(fmt.Sprintf("Partition %s revision %d, %d snapshots", flags.Partition, rev, chain.Len()))
				return nil
			})
		},
	}
	flags.addStoreFlags(cmd, true)
	cmd.Flags().StringSliceVar(&peers, "peer", nil, "consistent id of the peer node, can be repeated")
	cmd.Flags().StringSliceVar(&learners, "learner", nil, "consistent id of the learner node, can be repeated")
	cmd.Flags().BoolVar(&force, "force", false, "assignments are forced (manual override)")
	cmd.Flags().BoolVar(&fromReset, "from-reset", false, "assignments originate from partition reset")
	cmd.Flags().Int64Var(&timestamp, "timestamp", 0, "hybrid timestamp (long value) of the snapshot")
	return cmd
}

func chainImportCmd(config *baseConfiguration) *cobra.Command {
	flags := &storeFlags{base: config}
	var input string
	var cmd = &cobra.Command{
		Use:   "import",
		Short: "Replaces the chain of the partition",
		Long:  "Replaces the chain of the partition with the chain loaded from file. The file may contain binary chain (of any supported version) or chain document (yaml or json).",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filepath.Clean(input))
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			var chain pd.AssignmentsChain
			// header of the binary form is never valid UTF-8
			if utf8.Valid(data) {
				chain, err = readChainDocument(bytes.NewReader(data))
			} else {
				chain, err = versioned.FromBytes(data, pd.AssignmentsChainSerializer{})
			}
			if err != nil {
				return fmt.Errorf("loading chain: %w", err)
			}

			return flags.withStore(func(store *partitions.ChainStore) error {
				rev, err := store.SetChain(cmd.Context(), flags.Partition, chain)
				if err != nil {
					return err
				}
				consoleWriter.Println(fmt.Sprintf("Partition %s revision %d, %d snapshots", flags.Partition, rev, chain.Len()))
				return nil
			})
		},
	}
	flags.addStoreFlags(cmd, true)
	cmd.Flags().StringVarP(&input, "input", "i", "", "file containing the chain")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func chainDropCmd(config *baseConfiguration) *cobra.Command {
	flags := &storeFlags{base: config}
	var cmd = &cobra.Command{
		Use:   "drop",
		Short: "Deletes the chain of the partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withStore(func(store *partitions.ChainStore) error {
				if err := store.Drop(cmd.Context(), flags.Partition); err != nil {
					return err
				}
				consoleWriter.Println(fmt.Sprintf("Partition %s dropped", flags.Partition))
				return nil
			})
		},
	}
	flags.addStoreFlags(cmd, true)
	return cmd
}

func chainVerifyCmd(config *baseConfiguration) *cobra.Command {
	flags := &storeFlags{base: config}
	var cmd = &cobra.Command{
		Use:   "verify",
		Short: "Verifies that all the chains in the store are decodable and in timestamp order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withStore(func(store *partitions.ChainStore) error {
				if err := store.Verify(cmd.Context()); err != nil {
					return fmt.Errorf("verification failed: %w", err)
				}
				consoleWriter.Println("All chains are valid")
				return nil
			})
		},
	}
	flags.addStoreFlags(cmd, false)
	return cmd
}

func (f *storeFlags) addStoreFlags(cmd *cobra.Command, withPartition bool) {
	cmd.Flags().StringVar(&f.DBFile, "db", "", fmt.Sprintf("chain store file (default $PD_HOME/%s)", defaultStoreFile))
	if withPartition {
		cmd.Flags().Var(&partitionIDFlag{id: &f.Partition}, "partition", "partition id as zone_partition, ie 1_2")
		_ = cmd.MarkFlagRequired("partition")
	}
}

// withStore opens the chain store for the duration of the "f" call.
func (f *storeFlags) withStore(fn func(store *partitions.ChainStore) error) (err error) {
	store, closeDB, err := openChainStore(f.base, f.DBFile)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeDB()) }()
	return fn(store)
}

func openChainStore(config *baseConfiguration, dbFile string) (*partitions.ChainStore, func() error, error) {
	dbFile = config.storeFile(dbFile)
	if err := os.MkdirAll(filepath.Dir(dbFile), 0700); err != nil {
		return nil, nil, fmt.Errorf("creating directory for the chain store: %w", err)
	}
	db, err := boltdb.New(dbFile, boltdb.WithBucket(storeBucket))
	if err != nil {
		return nil, nil, err
	}
	store, err := partitions.NewChainStore(db, config.observe)
	if err != nil {
		return nil, nil, errors.Join(err, db.Close())
	}
	return store, db.Close, nil
}

/*
printChain prints "v" in requested format, "chain" is used for the formats
which can only represent the chain itself.
*/
func printChain(format string, v any, chain pd.AssignmentsChain) error {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding chain as json: %w", err)
		}
		consoleWriter.Println(string(data))
	case formatYAML:
		buf := &bytes.Buffer{}
		if err := writeChainDocument(buf, chain); err != nil {
			return err
		}
		consoleWriter.Print(buf.String())
	case formatBase64:
		data, err := versioned.ToBytes(chain, pd.AssignmentsChainSerializer{})
		if err != nil {
			return fmt.Errorf("encoding chain: %w", err)
		}
		consoleWriter.Println(base64.StdEncoding.EncodeToString(data))
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
	return nil
}
