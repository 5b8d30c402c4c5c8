package connector

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/erp/catalogsync/internal/infrastructure/config"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

const defaultSSHPort = 22

// tunnel forwards destination connections through an SSH bastion.
type tunnel struct {
	client     *ssh.Client
	remoteAddr string
	logger     *zap.Logger
}

// sshDialer opens the SSH client connection to the bastion.
type sshDialer func(network, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error)

func openTunnel(cfg config.TunnelConfig, privateKey string, timeout time.Duration, dial sshDialer, logger *zap.Logger) (*tunnel, error) {
	clientCfg, err := sshClientConfig(cfg, privateKey, timeout)
	if err != nil {
		return nil, err
	}
	port := cfg.Port
	if port == 0 {
		port = defaultSSHPort
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	client, err := dial("tcp", addr, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrTunnel, addr, err)
	}
	logger.Info("SSH tunnel established",
		zap.String("bastion", addr),
		zap.String("remote_addr", cfg.RemoteAddr),
	)
	return &tunnel{client: client, remoteAddr: cfg.RemoteAddr, logger: logger}, nil
}

func sshClientConfig(cfg config.TunnelConfig, privateKey string, timeout time.Duration) (*ssh.ClientConfig, error) {
	signer, err := ssh.ParsePrivateKey([]byte(privateKey))
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %v", ErrTunnel, err)
	}
	hostKey, err := hostKeyCallback(cfg.HostKey)
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}, nil
}

// hostKeyCallback pins the bastion key given as an authorized_keys line.
// An empty line accepts any key.
func hostKeyCallback(line string) (ssh.HostKeyCallback, error) {
	if line == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
	if err != nil {
		return nil, fmt.Errorf("%w: parse host key: %v", ErrTunnel, err)
	}
	return ssh.FixedHostKey(pub), nil
}

// DialContext dials the destination from the bastion. Every address is
// redirected to the remote address when one is configured.
func (t *tunnel) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	target := addr
	if t.remoteAddr != "" {
		target = t.remoteAddr
	}
	conn, err := t.client.DialContext(ctx, network, target)
	if err != nil {
		return nil, fmt.Errorf("%w: forward to %s: %v", ErrTunnel, target, err)
	}
	return conn, nil
}

// Transport returns an HTTP transport that routes through the tunnel.
func (t *tunnel) Transport() *http.Transport {
	return &http.Transport{
		DialContext:         t.DialContext,
		MaxIdleConns:        4,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// Close tears down the SSH connection.
func (t *tunnel) Close() error {
	t.logger.Debug("Closing SSH tunnel")
	return t.client.Close()
}
