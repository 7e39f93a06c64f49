package lock

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"
)

// Conn is the subset of the ZooKeeper client used by the locker.
// *zk.Conn satisfies it.
type Conn interface {
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	CreateProtectedEphemeralSequential(path string, data []byte, acl []zk.ACL) (string, error)
	Children(path string) ([]string, *zk.Stat, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	Delete(path string, version int32) error
}

// ZooKeeperLocker implements Locker on ephemeral sequential znodes.
// Each key gets a directory under the root; waiters queue as sequential
// nodes and each watches only its predecessor, so grants are FIFO and a
// crashed holder's session expiry releases the lock without intervention.
type ZooKeeperLocker struct {
	conn Conn
	root string
}

const defaultLockRoot = "/liveshop/locks"

// NewZooKeeperLocker constructs a locker rooted at root (defaults to
// /liveshop/locks when empty).
func NewZooKeeperLocker(conn Conn, root string) *ZooKeeperLocker {
	if root == "" {
		root = defaultLockRoot
	}
	return &ZooKeeperLocker{conn: conn, root: root}
}

// Acquire queues for the key and blocks until granted, the wait budget
// lapses, or the context ends. Cleanup of the queue node happens on every
// failure path so an interrupted wait never blocks later callers.
func (l *ZooKeeperLocker) Acquire(ctx context.Context, key string, wait, hold time.Duration) (Lease, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := l.root + "/" + key
	if err := l.ensurePath(dir); err != nil {
		return nil, fmt.Errorf("ensure lock path %s: %w", dir, err)
	}

	node, err := l.conn.CreateProtectedEphemeralSequential(dir+"/lock-", nil, zk.WorldACL(zk.PermAll))
	if err != nil {
		return nil, fmt.Errorf("create lock node: %w", err)
	}
	mine := strings.TrimPrefix(node, dir+"/")
	deadline := time.Now().Add(wait)

	for {
		children, _, err := l.conn.Children(dir)
		if err != nil {
			l.deleteQuiet(node)
			return nil, fmt.Errorf("list lock queue: %w", err)
		}
		sortBySequence(children)

		pos := indexOf(children, mine)
		if pos < 0 {
			return nil, fmt.Errorf("lock node %s missing from queue", node)
		}
		if pos == 0 {
			return l.newLease(node, hold), nil
		}

		// Not first in line: wait for the predecessor to go away.
		pred := dir + "/" + children[pos-1]
		exists, _, events, err := l.conn.ExistsW(pred)
		if err != nil {
			l.deleteQuiet(node)
			return nil, fmt.Errorf("watch predecessor: %w", err)
		}
		if !exists {
			continue
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			l.deleteQuiet(node)
			return nil, ErrLockTimeout
		}
		timer := time.NewTimer(remaining)
		select {
		case <-events:
			timer.Stop()
		case <-timer.C:
			l.deleteQuiet(node)
			return nil, ErrLockTimeout
		case <-ctx.Done():
			timer.Stop()
			l.deleteQuiet(node)
			return nil, ctx.Err()
		}
	}
}

func (l *ZooKeeperLocker) ensurePath(path string) error {
	var prefix string
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		prefix += "/" + part
		_, err := l.conn.Create(prefix, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && err != zk.ErrNodeExists {
			return err
		}
	}
	return nil
}

func (l *ZooKeeperLocker) deleteQuiet(node string) {
	if err := l.conn.Delete(node, -1); err != nil && err != zk.ErrNoNode {
		// The node is ephemeral; session expiry will reap it.
		_ = err
	}
}

func (l *ZooKeeperLocker) newLease(node string, hold time.Duration) *zkLease {
	lease := &zkLease{locker: l, node: node}
	if hold > 0 {
		lease.holdTimer = time.AfterFunc(hold, func() { _ = lease.Release() })
	}
	return lease
}

type zkLease struct {
	locker    *ZooKeeperLocker
	node      string
	holdTimer *time.Timer
	once      sync.Once
	err       error
}

func (le *zkLease) Release() error {
	le.once.Do(func() {
		if le.holdTimer != nil {
			le.holdTimer.Stop()
		}
		if err := le.locker.conn.Delete(le.node, -1); err != nil && err != zk.ErrNoNode {
			le.err = fmt.Errorf("delete lock node: %w", err)
		}
	})
	return le.err
}

// sortBySequence orders queue nodes by their trailing sequence number.
// Protected ephemeral names carry a GUID prefix, so a plain string sort
// would not reflect arrival order.
func sortBySequence(names []string) {
	sort.Slice(names, func(i, j int) bool {
		return sequenceOf(names[i]) < sequenceOf(names[j])
	})
}

func sequenceOf(name string) int {
	idx := strings.LastIndex(name, "-")
	if idx < 0 || idx+1 >= len(name) {
		return -1
	}
	seq, err := strconv.Atoi(name[idx+1:])
	if err != nil {
		return -1
	}
	return seq
}

func indexOf(names []string, target string) int {
	for i, n := range names {
		if n == target {
			return i
		}
	}
	return -1
}
