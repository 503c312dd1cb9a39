package sshclient

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"revsync/internal/config"
)

// SSHClient implements Transport over a single SSH connection. File bytes
// travel via the remote scp program in -t/-f mode; listing, existence,
// delete and rename are plain remote commands. One connection is shared by
// all sync operations for a profile, so every public method takes the
// client mutex: overlapping high-level operations (a scheduled auto-upload
// racing a manual bulk sync) serialize here instead of interleaving on the
// wire.
type SSHClient struct {
	mu     sync.Mutex
	client *ssh.Client
	config *ssh.ClientConfig
	host   string
	port   string
}

var _ Transport = (*SSHClient)(nil)

// NewSSHClient builds a client from a connection profile. Key auth wins
// when both a key and a password are configured.
func NewSSHClient(p *config.Profile) (*SSHClient, error) {
	var methods []ssh.AuthMethod

	if p.PrivateKey != "" {
		keyPath := expandHome(p.PrivateKey)
		key, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read private key: %v", err)
		}
		var signer ssh.Signer
		if p.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(p.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fmt.Errorf("unable to parse private key: %v", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if p.Password != "" {
		methods = append(methods, ssh.Password(p.Password))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("profile %s has no password and no private key", p.Name)
	}

	cfg := &ssh.ClientConfig{
		User:            p.Username,
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // TODO: known_hosts verification
		Timeout:         15 * time.Second,
	}

	return &SSHClient{config: cfg, host: p.Host, port: p.Port}, nil
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

// Connect establishes the SSH connection.
func (c *SSHClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return nil
	}
	addr := fmt.Sprintf("%s:%s", c.host, c.port)
	client, err := ssh.Dial("tcp", addr, c.config)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %v", addr, err)
	}
	c.client = client
	return nil
}

// Close closes the SSH connection.
func (c *SSHClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// shQuote single-quotes a path for the remote shell.
func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func (c *SSHClient) sessionLocked() (*ssh.Session, error) {
	if c.client == nil {
		return nil, fmt.Errorf("SSH client not connected")
	}
	return c.client.NewSession()
}

func (c *SSHClient) runLocked(cmd string) error {
	session, err := c.sessionLocked()
	if err != nil {
		return fmt.Errorf("failed to create session: %v", err)
	}
	defer session.Close()
	return session.Run(cmd)
}

func (c *SSHClient) outputLocked(cmd string) (string, error) {
	session, err := c.sessionLocked()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %v", err)
	}
	defer session.Close()
	out, err := session.Output(cmd)
	if err != nil {
		return "", fmt.Errorf("command failed: %v", err)
	}
	return string(out), nil
}

// ListDir lists a remote directory, reporting name, kind, size and modify
// time per entry. Parses `ls -lA` with epoch timestamps.
func (c *SSHClient) ListDir(dirPath string) ([]DirEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out, err := c.outputLocked("LC_ALL=C ls -lA --time-style=+%s -- " + shQuote(dirPath))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %v", dirPath, err)
	}

	var entries []DirEntry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "total ") {
			continue
		}
		// perms links owner group size epoch name...
		fields := strings.Fields(line)
		if len(fields) < 7 {
			continue
		}
		kind := KindFile
		switch line[0] {
		case 'd':
			kind = KindDir
		case 'l':
			kind = KindLink
		}
		size, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			continue
		}
		epoch, err := strconv.ParseInt(fields[5], 10, 64)
		if err != nil {
			continue
		}
		name := strings.Join(fields[6:], " ")
		if kind == KindLink {
			if i := strings.Index(name, " -> "); i >= 0 {
				name = name[:i]
			}
		}
		entries = append(entries, DirEntry{
			Name:    name,
			Kind:    kind,
			Size:    size,
			ModTime: time.Unix(epoch, 0),
		})
	}
	return entries, nil
}

// Exists checks whether a remote path exists (file, dir or link).
func (c *SSHClient) Exists(remotePath string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out, err := c.outputLocked("test -e " + shQuote(remotePath) + " && echo 1 || echo 0")
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %v", remotePath, err)
	}
	return strings.TrimSpace(out) == "1", nil
}

// Delete removes a remote path, recursively for directories.
func (c *SSHClient) Delete(remotePath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.runLocked("rm -rf -- " + shQuote(remotePath)); err != nil {
		return fmt.Errorf("failed to delete %s: %v", remotePath, err)
	}
	return nil
}

// Rename moves a remote path, creating the destination's parent first.
func (c *SSHClient) Rename(oldPath, newPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cmd := "mkdir -p -- " + shQuote(path.Dir(newPath)) + " && mv -- " + shQuote(oldPath) + " " + shQuote(newPath)
	if err := c.runLocked(cmd); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %v", oldPath, newPath, err)
	}
	return nil
}

// readAck reads one scp acknowledgement byte, turning remote error replies
// into errors. Bounded by a timeout so a wedged remote never blocks forever.
func readAck(stdout io.Reader, stderr io.Reader) error {
	buf := make([]byte, 1)
	ch := make(chan error, 1)

	go func() {
		if _, err := stdout.Read(buf); err != nil {
			ch <- fmt.Errorf("failed to read scp ack: %v", err)
			return
		}
		switch buf[0] {
		case 0:
			ch <- nil
		case 1, 2:
			msg := make([]byte, 1024)
			n, _ := stderr.Read(msg)
			ch <- fmt.Errorf("scp remote error: %s", strings.TrimSpace(string(msg[:n])))
		default:
			ch <- fmt.Errorf("unknown scp ack: %v", buf[0])
		}
	}()

	select {
	case err := <-ch:
		return err
	case <-time.After(10 * time.Second):
		return fmt.Errorf("timeout waiting for scp ack")
	}
}

// UploadFile copies a local file to the remote host via scp -t, creating
// remote parent directories first.
func (c *SSHClient) UploadFile(localPath, remotePath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	localFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %v", err)
	}
	defer localFile.Close()

	stat, err := localFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat local file: %v", err)
	}

	remoteDir := path.Dir(filepath.ToSlash(remotePath))
	if err := c.runLocked("mkdir -p -- " + shQuote(remoteDir)); err != nil {
		return fmt.Errorf("failed to create remote directory: %v", err)
	}

	session, err := c.sessionLocked()
	if err != nil {
		return fmt.Errorf("failed to create session: %v", err)
	}
	defer session.Close()

	stdin, err := session.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdin pipe: %v", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %v", err)
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %v", err)
	}

	if err := session.Start("scp -t " + shQuote(remoteDir)); err != nil {
		return fmt.Errorf("failed to start scp on remote: %v", err)
	}

	fail := func(err error) error {
		stdin.Close()
		session.Wait()
		return err
	}

	if err := readAck(stdout, stderr); err != nil {
		return fail(err)
	}

	// file header: C<mode> <size> <filename>\n
	fmt.Fprintf(stdin, "C%04o %d %s\n", stat.Mode().Perm(), stat.Size(), path.Base(filepath.ToSlash(remotePath)))
	if err := readAck(stdout, stderr); err != nil {
		return fail(err)
	}

	if _, err := io.Copy(stdin, localFile); err != nil {
		return fail(fmt.Errorf("failed to send file data: %v", err))
	}
	if _, err := stdin.Write([]byte{0}); err != nil {
		return fail(fmt.Errorf("failed to send scp terminator: %v", err))
	}
	if err := readAck(stdout, stderr); err != nil {
		return fail(err)
	}

	stdin.Close()
	if err := session.Wait(); err != nil {
		return fmt.Errorf("remote scp command failed: %v", err)
	}
	return nil
}

// DownloadFile fetches a remote file via scp -f, creating local parent
// directories as needed.
func (c *SSHClient) DownloadFile(remotePath, localPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.sessionLocked()
	if err != nil {
		return fmt.Errorf("failed to create session: %v", err)
	}
	defer session.Close()

	stdin, err := session.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdin pipe: %v", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %v", err)
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %v", err)
	}

	if err := session.Start("scp -f " + shQuote(remotePath)); err != nil {
		return fmt.Errorf("failed to start scp on remote: %v", err)
	}

	fail := func(err error) error {
		stdin.Close()
		session.Wait()
		return err
	}
	writeNull := func() error {
		if _, err := stdin.Write([]byte{0}); err != nil {
			return fmt.Errorf("failed to write scp null byte: %v", err)
		}
		return nil
	}

	if err := writeNull(); err != nil {
		return fail(err)
	}

	reader := bufio.NewReader(stdout)
	b, err := reader.ReadByte()
	if err != nil {
		return fail(fmt.Errorf("failed to read scp header byte: %v", err))
	}
	if b == 1 || b == 2 {
		msg := make([]byte, 1024)
		n, _ := stderr.Read(msg)
		return fail(fmt.Errorf("scp remote error: %s", strings.TrimSpace(string(msg[:n]))))
	}
	if b != 'C' {
		return fail(fmt.Errorf("unexpected scp header: %v", b))
	}

	headerLine, err := reader.ReadString('\n')
	if err != nil {
		return fail(fmt.Errorf("failed to read scp header line: %v", err))
	}
	// header: <mode> <size> <filename>\n
	parts := strings.Fields(strings.TrimSpace(headerLine))
	if len(parts) < 3 {
		return fail(fmt.Errorf("invalid scp header: %s", headerLine))
	}
	size, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return fail(fmt.Errorf("invalid size in scp header: %v", err))
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fail(fmt.Errorf("failed to create local directories: %v", err))
	}
	lf, err := os.Create(localPath)
	if err != nil {
		return fail(fmt.Errorf("failed to create local file: %v", err))
	}
	defer lf.Close()

	if err := writeNull(); err != nil {
		return fail(err)
	}
	if _, err := io.CopyN(lf, reader, size); err != nil {
		return fail(fmt.Errorf("failed to copy file data: %v", err))
	}

	if ack, err := reader.ReadByte(); err != nil || ack != 0 {
		msg := make([]byte, 1024)
		n, _ := stderr.Read(msg)
		if err != nil {
			return fail(fmt.Errorf("failed after data copy: %v", err))
		}
		return fail(fmt.Errorf("scp did not acknowledge data: %s", strings.TrimSpace(string(msg[:n]))))
	}
	if err := writeNull(); err != nil {
		return fail(err)
	}

	stdin.Close()
	if err := session.Wait(); err != nil {
		return fmt.Errorf("remote scp command failed: %v", err)
	}
	return nil
}
