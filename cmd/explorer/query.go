package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chainExplorer/internal/chain"
	"chainExplorer/internal/config"
	"chainExplorer/internal/indexer"
	"chainExplorer/internal/model"
	"chainExplorer/internal/registry"
	"chainExplorer/internal/report"
	"chainExplorer/internal/storage"
)

// queryEnv is what a read-only command works with.
type queryEnv struct {
	cfg    config.Common
	logger *zap.Logger
	store  storage.Store
	out    io.Writer
}

// withStore loads the shared configuration, opens the store and runs fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, env queryEnv) error) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuery(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(ctx, queryEnv{cfg: cfg, logger: logger, store: store, out: cmd.OutOrStdout()})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgFile, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadQuery(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cfg.Redacted())
		},
	}
}

func newPopBlocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pop-blocks <height>",
		Short: "Delete every block, transaction and log above height",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			height, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid height %q: %w", args[0], err)
			}
			return withStore(cmd, func(ctx context.Context, env queryEnv) error {
				target, err := env.store.PopBlocks(ctx, height)
				if err != nil {
					return err
				}
				env.logger.Info("blocks popped", zap.Uint64("height", target))
				return printJSON(env.out, target)
			})
		},
	}
}

func newBlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "block <hash>",
		Short: "Show a stored block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, env queryEnv) error {
				block, err := env.store.BlockByHash(ctx, args[0])
				if err != nil {
					return fmt.Errorf("block %s: %w", args[0], err)
				}
				return printJSON(env.out, block)
			})
		},
	}
}

func newVerifyBlocksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify-blocks",
		Short: "Check that stored blocks form one contiguous chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, _ := cmd.Flags().GetUint64("from")
			to, _ := cmd.Flags().GetUint64("to")
			batchSize, _ := cmd.Flags().GetUint64("batch-size")
			return withStore(cmd, func(ctx context.Context, env queryEnv) error {
				if to == 0 {
					height, err := env.store.Height(ctx)
					if err != nil {
						return err
					}
					to = height
				}
				if from > to {
					return fmt.Errorf("from %d is above to %d", from, to)
				}
				result, err := indexer.Verify(ctx, env.store, from, to, batchSize, env.logger)
				if err != nil {
					return err
				}
				if err := printJSON(env.out, result); err != nil {
					return err
				}
				if !result.OK() {
					return fmt.Errorf("%d problems found, first at height %d", len(result.Problems), result.Problems[0].Height)
				}
				return nil
			})
		},
	}
	cmd.Flags().Uint64("from", 0, "first height to check")
	cmd.Flags().Uint64("to", 0, "last height to check, 0 means the stored height")
	cmd.Flags().Uint64("batch-size", 1000, "blocks loaded per query")
	return cmd
}

func newTokenTxsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokentxs",
		Short: "List decoded token transfers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withStore(cmd, func(ctx context.Context, env queryEnv) error {
				transfers, err := report.New(env.store, nil).TokenTransfers(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(env.out, transfers)
			})
		},
	}
	cmd.Flags().Int("limit", 100, "number of transactions to show")
	return cmd
}

func newListContractUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listcontractusers <contract>",
		Short: "List accounts that called a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withStore(cmd, func(ctx context.Context, env queryEnv) error {
				users, err := report.New(env.store, nil).ContractUsers(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return printJSON(env.out, users)
			})
		},
	}
	cmd.Flags().Int("limit", 100, "number of accounts to show")
	return cmd
}

func newListSwapsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listswaps",
		Short: "List successful router swaps with their pair events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			router, _ := cmd.Flags().GetString("router")
			limit, _ := cmd.Flags().GetInt("limit")
			return withStore(cmd, func(ctx context.Context, env queryEnv) error {
				contracts, err := env.cfg.Registry()
				if err != nil {
					return err
				}
				if router == "" {
					routers := contracts.OfKind(model.KindRouter)
					if len(routers) == 0 {
						return fmt.Errorf("no router registered, pass --router")
					}
					router = routers[0]
				}
				swaps, err := report.New(env.store, contracts.Tokens()).Swaps(ctx, router, limit)
				if err != nil {
					return err
				}
				return printJSON(env.out, swaps)
			})
		},
	}
	cmd.Flags().String("router", "", "router address (default: the first registered router)")
	cmd.Flags().Int("limit", 10, "number of swaps to show")
	return cmd
}

func newResetDetailsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-details <hash>",
		Short: "Clear a transaction's decoded details so it is decoded again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, env queryEnv) error {
				if err := env.store.ResetDetails(ctx, args[0]); err != nil {
					return fmt.Errorf("reset details %s: %w", args[0], err)
				}
				env.logger.Info("details reset", zap.String("tx_hash", args[0]))
				return nil
			})
		},
	}
}

func newContractInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contract-info <address>",
		Short: "Read ERC20 decimals, symbol and name from chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("invalid address: %s", args[0])
			}
			rpcURL, _ := cmd.Flags().GetString("rpc")
			if rpcURL == "" {
				rpcURL = os.Getenv("EXPLORER_RPC")
			}
			if rpcURL == "" {
				return fmt.Errorf("rpc url is required")
			}
			level, _ := cmd.Flags().GetString("log-level")
			logger, err := newLogger(level)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			chainClient, err := chain.NewClient(ctx, rpcURL)
			if err != nil {
				return fmt.Errorf("connect rpc: %w", err)
			}
			defer chainClient.Close()

			address := common.HexToAddress(args[0])
			info, err := registry.FetchTokenInfo(ctx, chainClient, address, logger)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), registry.Spec{
				Address: address.Hex(),
				Kind:    string(model.KindToken),
				Token:   &registry.TokenSpec{Decimals: info.Decimals, Symbol: info.Symbol, Name: info.Name},
			})
		},
	}
	cmd.Flags().String("rpc", "", "node RPC URL")
	return cmd
}
