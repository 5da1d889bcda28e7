// ABOUTME: Minimal fake backend agent for manual end-to-end runs of agentmux
// ABOUTME: Usage: fake-agent --socket PATH [--keys 2] [--comment-prefix fake]
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/2389/agentmux/internal/protocol"
)

func main() {
	socket := flag.StringP("socket", "s", "", "socket path to listen on")
	keys := flag.IntP("keys", "n", 1, "number of ed25519 keys to generate")
	prefix := flag.String("comment-prefix", "fake", "key comment prefix")
	flag.Parse()

	if *socket == "" {
		log.Fatal("--socket is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *socket, *keys, *prefix); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, socket string, keys int, prefix string) error {
	keyring, err := newKeyring(keys, prefix)
	if err != nil {
		return err
	}

	if err := os.Remove(socket); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing stale socket: %w", err)
	}
	ln, err := net.Listen("unix", socket)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", socket, err)
	}
	defer os.Remove(socket)
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	log.Printf("serving %d keys on %s", keys, socket)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go func() {
			defer conn.Close()
			_ = agent.ServeAgent(keyring, conn)
		}()
	}
}

func newKeyring(n int, prefix string) (agent.Agent, error) {
	keyring := agent.NewKeyring()
	for i := 1; i <= n; i++ {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generating key: %w", err)
		}
		comment := fmt.Sprintf("%s-%d", prefix, i)
		if err := keyring.Add(agent.AddedKey{PrivateKey: priv, Comment: comment}); err != nil {
			return nil, fmt.Errorf("adding key: %w", err)
		}
		sshPub, err := ssh.NewPublicKey(pub)
		if err != nil {
			return nil, fmt.Errorf("encoding key: %w", err)
		}
		log.Printf("key %s %s", protocol.Fingerprint(sshPub.Marshal()), comment)
	}
	return keyring, nil
}
