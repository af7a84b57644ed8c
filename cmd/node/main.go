// Command node runs an Axiom fact-ledger node.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/axiomproject/axiom/api"
	"github.com/axiomproject/axiom/collab"
	"github.com/axiomproject/axiom/config"
	"github.com/axiomproject/axiom/consensus"
	"github.com/axiomproject/axiom/errs"
	"github.com/axiomproject/axiom/events"
	"github.com/axiomproject/axiom/identity"
	"github.com/axiomproject/axiom/identity/certgen"
	"github.com/axiomproject/axiom/indexer"
	"github.com/axiomproject/axiom/ledger"
	"github.com/axiomproject/axiom/p2p"
	"github.com/axiomproject/axiom/storage"
)

const version = "0.1.0"

// Exit codes, spec.md §7.
const (
	exitConfigError      = 1
	exitStorageInvariant = 2
	exitIOError          = 3
)

func main() {
	root := &cobra.Command{Use: "axiom", Short: "Axiom fact-ledger node"}

	nodeCmd := &cobra.Command{Use: "node", Short: "run a node", RunE: runNode}
	config.BindFlags(nodeCmd.Flags())
	root.AddCommand(nodeCmd)

	genKeyCmd := &cobra.Command{Use: "genkey", Short: "generate a new RSA-2048 node identity and exit", RunE: runGenKey}
	genKeyCmd.Flags().String("data-dir", "./data", "directory to write identity.pem into")
	genKeyCmd.Flags().String("password", "", "if set, encrypt the identity file at rest under this password")
	root.AddCommand(genKeyCmd)

	genCertsCmd := &cobra.Command{Use: "gencerts", Short: "generate a self-signed CA and node TLS certificate and exit", RunE: runGenCerts}
	genCertsCmd.Flags().String("data-dir", "./data", "directory to write tls/ into")
	genCertsCmd.Flags().String("node-id", "", "certificate CN/SAN (default: the identity's fingerprint)")
	root.AddCommand(genCertsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(exitConfigError)
	}
}

func runGenKey(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	password, _ := cmd.Flags().GetString("password")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("mkdir data dir: %w", err)
	}
	priv, pub, err := identity.GenerateKeyPair()
	if err != nil {
		return err
	}
	path := filepath.Join(dataDir, "identity.pem")
	if password != "" {
		if err := identity.SaveEncrypted(path, password, priv); err != nil {
			return err
		}
	} else if err := identity.SavePrivatePEM(path, priv); err != nil {
		return err
	}
	fmt.Printf("Generated identity. Fingerprint: %s\n", pub.Fingerprint())
	fmt.Printf("Saved to: %s\n", path)
	return nil
}

func runGenCerts(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	nodeID, _ := cmd.Flags().GetString("node-id")
	if nodeID == "" {
		priv, err := identity.LoadPrivatePEM(filepath.Join(dataDir, "identity.pem"))
		if err != nil {
			return fmt.Errorf("load identity for node-id: %w", err)
		}
		nodeID = priv.Public().Fingerprint()
	}
	tlsDir := filepath.Join(dataDir, "tls")
	if err := certgen.GenerateAll(tlsDir, nodeID, nil); err != nil {
		return fmt.Errorf("gencerts: %w", err)
	}
	fmt.Printf("Certificates generated in %s for node %q\n", tlsDir, nodeID)
	return nil
}

func runNode(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		logrus.Errorf("config: %v", err)
		os.Exit(exitConfigError)
	}
	log := newLogger(cfg.LogLevel)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Errorf("mkdir data dir: %v", err)
		os.Exit(exitIOError)
	}

	priv, pub, err := loadOrCreateIdentity(cfg)
	if err != nil {
		log.Errorf("identity: %v", err)
		os.Exit(exitIOError)
	}
	fingerprint := pub.Fingerprint()
	log.Infof("node identity: %s", fingerprint)

	// certgen names the leaf cert/key after the node's own fingerprint
	// (see identity/certgen), not a fixed "node.crt" — config.Load can't
	// know the fingerprint yet when it sets defaults, so rewrite the
	// cert/key paths here before the first load attempt.
	tlsDir := filepath.Dir(cfg.TLS.CACert)
	cfg.TLS.NodeCert = filepath.Join(tlsDir, fingerprint+".crt")
	cfg.TLS.NodeKey = filepath.Join(tlsDir, fingerprint+".key")

	tlsCfg, err := config.LoadTLSConfig(cfg.TLS)
	if tlsCfg == nil || err != nil {
		if err := certgen.GenerateAll(tlsDir, fingerprint, nil); err != nil {
			log.Errorf("gencerts: %v", err)
			os.Exit(exitIOError)
		}
		tlsCfg, err = config.LoadTLSConfig(cfg.TLS)
		if err != nil {
			log.Errorf("tls: %v", err)
			os.Exit(exitIOError)
		}
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger.db"))
	if err != nil {
		log.Errorf("open db: %v", err)
		os.Exit(exitIOError)
	}
	defer db.Close()

	emitter := events.NewEmitter(log)

	facts := storage.NewFactStore(db)
	blocks := storage.NewBlockStore(db, facts)
	peers := storage.NewPeerStore(db)
	validators := storage.NewValidatorStore(db)

	chain := ledger.NewChain(blocks, emitter)
	if err := chain.Init(); err != nil {
		log.Errorf("chain init: %v", err)
		os.Exit(exitStorageInvariant)
	}
	if chain.Tip() == nil {
		// Genesis is accepted only if absent locally (spec.md §8): a fresh
		// node mints and commits it once, here, before anything else can
		// propose or validate against the chain.
		if err := chain.AppendBlock(ledger.GenesisBlock(ledger.GenesisTimestamp), nil); err != nil {
			log.Errorf("commit genesis: %v", err)
			os.Exit(exitStorageInvariant)
		}
	}

	active, err := validators.ListActive()
	if err != nil {
		log.Errorf("list validators: %v", err)
		os.Exit(exitStorageInvariant)
	}
	if len(active) == 0 {
		log.Infof("no active validators on a fresh chain; seeding self with stake 1")
		if err := config.SeedValidators(validators, []config.GenesisStake{{Fingerprint: fingerprint, Stake: 1}}); err != nil {
			log.Errorf("seed validators: %v", err)
			os.Exit(exitStorageInvariant)
		}
	}

	derHex, err := pub.DERHex()
	if err != nil {
		log.Errorf("encode public key: %v", err)
		os.Exit(exitIOError)
	}
	now := time.Now().Unix()
	selfAddr := fmt.Sprintf("%s:%d", cfg.Host, cfg.P2PPort)
	if err := peers.Put(fingerprint, &storage.PeerRecord{
		NetworkAddress: selfAddr, PublicKey: derHex, FirstSeen: now, LastSeen: now,
	}); err != nil {
		log.Errorf("register self peer record: %v", err)
		os.Exit(exitStorageInvariant)
	}

	indexer.New(db, facts, emitter) // kept alive by its event subscriptions; queried through future browsing endpoints

	p2pAddr := fmt.Sprintf("%s:%d", cfg.Host, cfg.P2PPort)
	node := p2p.NewNode(fingerprint, derHex, p2pAddr, tlsCfg, chain.Height, emitter, log)
	gossip := p2p.NewGossiper(node)
	discovery := p2p.NewDiscovery(node, peers)
	syncer := p2p.NewSync(node, chain, facts)
	reputation := p2p.NewReputationManager(peers, emitter)
	keyResolver := p2p.NewPeerKeyResolver(peers)
	syncer.OnFact(func(f *ledger.Fact) error { return facts.Put(f) })

	guard := consensus.NewSigningGuard(db)
	engine := consensus.NewEngine(chain, validators, facts, guard, gossip, node, &blockRequester{node: node, sync: syncer}, emitter, priv, fingerprint, log)

	gossip.HandleBlockAnnounce(func(block *ledger.Block, from string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ledger.Validate(ctx, block, chain, engine, keyResolver, facts, syncer); err != nil {
			penalizeValidateFailure(reputation, from, err)
			return err
		}
		if err := chain.AppendBlock(block, sealedFactsFor(block, facts)); err != nil {
			return err
		}
		_ = reputation.BlockValidated(from)
		return nil
	})

	if err := node.Start(); err != nil {
		log.Errorf("p2p start: %v", err)
		os.Exit(exitIOError)
	}
	defer node.Stop()
	log.Infof("P2P listening on %s", p2pAddr)

	for _, addr := range cfg.BootstrapPeers {
		if err := discovery.Bootstrap(addr); err != nil {
			log.Warnf("bootstrap %s: %v", addr, err)
		}
	}

	stakeLedger := consensus.NewStakeLedger(validators, emitter)
	handlers := &api.Handlers{
		Version:     version,
		Fingerprint: fingerprint,
		Chain:       chain,
		Facts:       facts,
		Peers:       peers,
		Validators:  validators,
		Stake:       stakeLedger,
		PeerCounter: node,
		Synthesizer: collab.NoopSynthesizer{},
		ProposeNow: func() error {
			block, sealed, err := ledger.Propose(chain, facts, fingerprint, priv)
			if err != nil {
				return err
			}
			return chain.AppendBlock(block, sealed)
		},
	}
	server := api.NewServer(fmt.Sprintf("%s:%d", cfg.Host, cfg.APIPort), handlers, cfg.Debug, log)
	if err := server.Start(); err != nil {
		log.Errorf("api start: %v", err)
		os.Exit(exitIOError)
	}
	defer server.Stop()
	log.Infof("API listening on %s:%d", cfg.Host, cfg.APIPort)

	ctx, cancel := context.WithCancel(context.Background())
	opsCtx := &ledger.Context{Facts: facts, Emitter: emitter}
	ingestion := collab.NewIngestionTask(collab.NoopDiscoverer{}, collab.NoopExtractor{}, ledger.NewOperations(), opsCtx, facts, 0, 0, log)
	go engine.Run(ctx)
	go discovery.Run(ctx.Done())
	go ingestion.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
	cancel()
	time.Sleep(100 * time.Millisecond) // let background tasks observe cancellation
	log.Info("shutdown complete")
	return nil
}

// penalizeValidateFailure routes a ledger.Validate failure to the matching
// reputation delta (spec.md §4.D) instead of a single blanket penalty:
// malformed/oversize content costs little, a timed-out fact pull costs
// almost nothing, but a bad signature, wrong leader, or equivocation costs
// the full authority-failure penalty. Sentinel errors like ErrNeedsSync
// (the sender is simply ahead, not misbehaving) carry no errs.Kind and are
// left unpenalized.
func penalizeValidateFailure(reputation *p2p.ReputationManager, from string, err error) {
	var e *errs.Error
	if !errors.As(err, &e) {
		return
	}
	switch e.Kind {
	case errs.KindProtocol:
		_ = reputation.Malformed(from)
	case errs.KindTimeout:
		_ = reputation.Timeout(from)
	case errs.KindCrypto, errs.KindConsensus:
		_ = reputation.AuthorityFailure(from)
	}
}

// blockRequester adapts p2p.Sync's peer-object API to consensus.BlockRequester's
// fingerprint-keyed one.
type blockRequester struct {
	node *p2p.Node
	sync *p2p.Sync
}

func (b *blockRequester) RequestBlocks(fingerprint string, sinceHeight int64) error {
	peer := b.node.Peer(fingerprint)
	if peer == nil {
		return fmt.Errorf("no connected peer %s", fingerprint)
	}
	return b.sync.RequestBlocks(peer, sinceHeight)
}

// sealedFactsFor resolves a received block's fact hashes to full Fact bodies
// (already pulled locally during Validate) and stamps SealedIn so the commit
// carries the same fact snapshot ledger.Propose produces locally.
func sealedFactsFor(block *ledger.Block, facts *storage.FactStore) []*ledger.Fact {
	out := make([]*ledger.Fact, 0, len(block.Header.FactHashes))
	for _, h := range block.Header.FactHashes {
		f, err := facts.Get(h)
		if err != nil {
			continue
		}
		cp := *f
		cp.SealedIn = block.Hash
		out = append(out, &cp)
	}
	return out
}

func loadOrCreateIdentity(cfg *config.Config) (identity.PrivateKey, identity.PublicKey, error) {
	path := cfg.IdentityPath
	if cfg.SharedKeys {
		path = filepath.Join(os.TempDir(), "axiom-shared-identity.pem")
	}
	if _, err := os.Stat(path); err == nil {
		var priv identity.PrivateKey
		if cfg.IdentityPass != "" && identity.IsEncrypted(path) {
			priv, err = identity.LoadEncrypted(path, cfg.IdentityPass)
		} else {
			priv, err = identity.LoadPrivatePEM(path)
		}
		if err != nil {
			return identity.PrivateKey{}, identity.PublicKey{}, err
		}
		return priv, priv.Public(), nil
	}
	priv, pub, err := identity.GenerateKeyPair()
	if err != nil {
		return identity.PrivateKey{}, identity.PublicKey{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return identity.PrivateKey{}, identity.PublicKey{}, err
	}
	if cfg.IdentityPass != "" {
		if err := identity.SaveEncrypted(path, cfg.IdentityPass, priv); err != nil {
			return identity.PrivateKey{}, identity.PublicKey{}, err
		}
	} else if err := identity.SavePrivatePEM(path, priv); err != nil {
		return identity.PrivateKey{}, identity.PublicKey{}, err
	}
	return priv, pub, nil
}

func newLogger(level string) *logrus.Entry {
	l := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return logrus.NewEntry(l)
}
