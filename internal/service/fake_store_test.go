package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitsync/internal/models"
	"github.com/mmynk/splitsync/internal/storage"
)

// fakeStore is an in-memory storage.Store with copy-on-begin transactions:
// Begin clones the state, every write goes to the clone and Commit swaps it
// in, so a rolled-back or failed transaction leaves no partial mutation.
// commitErr fails the next Commit (serialization conflict injection) and
// codeCollisions makes the next N SetInviteCode calls report a duplicate.
type fakeStore struct {
	mu             sync.Mutex
	state          *fakeState
	memberCap      int
	commitErr      error
	codeCollisions int
}

type memberKey struct {
	groupID, userID int64
}

type fakeState struct {
	groups     map[int64]*models.Group
	members    map[memberKey]*models.GroupMember
	txns       map[int64]*models.Transaction
	transfers  map[int64]*models.Transfer
	tombstones []*models.Tombstone
	users      map[int64]*models.User
	groupSeq   int64
	ledgerSeq  int64
	userSeq    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		state: &fakeState{
			groups:    make(map[int64]*models.Group),
			members:   make(map[memberKey]*models.GroupMember),
			txns:      make(map[int64]*models.Transaction),
			transfers: make(map[int64]*models.Transfer),
			users:     make(map[int64]*models.User),
		},
		memberCap: 15,
	}
}

func (s *fakeState) clone() *fakeState {
	c := &fakeState{
		groups:     make(map[int64]*models.Group, len(s.groups)),
		members:    make(map[memberKey]*models.GroupMember, len(s.members)),
		txns:       make(map[int64]*models.Transaction, len(s.txns)),
		transfers:  make(map[int64]*models.Transfer, len(s.transfers)),
		tombstones: slices.Clone(s.tombstones),
		users:      make(map[int64]*models.User, len(s.users)),
		groupSeq:   s.groupSeq,
		ledgerSeq:  s.ledgerSeq,
		userSeq:    s.userSeq,
	}
	for id, g := range s.groups {
		cp := *g
		c.groups[id] = &cp
	}
	for k, m := range s.members {
		cp := *m
		c.members[k] = &cp
	}
	for id, t := range s.txns {
		cp := *t
		cp.Shares = slices.Clone(t.Shares)
		c.txns[id] = &cp
	}
	for id, t := range s.transfers {
		cp := *t
		c.transfers[id] = &cp
	}
	for id, u := range s.users {
		cp := *u
		c.users[id] = &cp
	}
	return c
}

// seedGroup inserts a group directly, bypassing transactions.
func (s *fakeStore) seedGroup(name string, inviteCode string) *models.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.groupSeq++
	g := &models.Group{ID: s.state.groupSeq, Name: name, CreatedOn: time.Now()}
	if inviteCode != "" {
		g.InviteCode = &inviteCode
	}
	s.state.groups[g.ID] = g
	return g
}

// seedMember inserts a membership row with the given balance.
func (s *fakeStore) seedMember(groupID, userID int64, balance string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.members[memberKey{groupID, userID}] = &models.GroupMember{
		GroupID: groupID,
		UserID:  userID,
		Balance: decimal.RequireFromString(balance),
	}
}

func (s *fakeStore) memberCount(groupID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.state.members {
		if k.groupID == groupID {
			n++
		}
	}
	return n
}

func (s *fakeStore) balance(groupID, userID int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.state.members[memberKey{groupID, userID}]
	if !ok {
		return decimal.Zero
	}
	return m.Balance
}

func (s *fakeStore) hasGroup(groupID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.state.groups[groupID]
	return ok
}

func (s *fakeStore) inviteCode(groupID int64) *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.groups[groupID].InviteCode
}

func (s *fakeStore) Begin(ctx context.Context, opts storage.TxOptions) (storage.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &fakeTx{store: s, work: s.state.clone()}, nil
}

func (s *fakeStore) Close() {}

type fakeTx struct {
	store *fakeStore
	work  *fakeState
	done  bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	if err := t.store.commitErr; err != nil {
		t.store.commitErr = nil
		return err
	}
	t.store.state = t.work
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}

func (t *fakeTx) InsertGroup(ctx context.Context, name string) (*models.Group, error) {
	t.work.groupSeq++
	g := &models.Group{ID: t.work.groupSeq, Name: name, CreatedOn: time.Now()}
	t.work.groups[g.ID] = g
	cp := *g
	return &cp, nil
}

func (t *fakeTx) GetGroup(ctx context.Context, groupID int64) (*models.Group, error) {
	g, ok := t.work.groups[groupID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (t *fakeTx) GetGroupByInviteCode(ctx context.Context, code string) (*models.Group, error) {
	for _, g := range t.work.groups {
		if g.InviteCode != nil && *g.InviteCode == code {
			cp := *g
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (t *fakeTx) LockGroup(ctx context.Context, groupID int64) (*models.Group, error) {
	return t.GetGroup(ctx, groupID)
}

func (t *fakeTx) UpdateGroupName(ctx context.Context, groupID int64, name string) (*models.Group, error) {
	g, ok := t.work.groups[groupID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	g.Name = name
	g.Version++
	cp := *g
	return &cp, nil
}

func (t *fakeTx) SetInviteCode(ctx context.Context, groupID int64, code *string) error {
	g, ok := t.work.groups[groupID]
	if !ok {
		return storage.ErrNotFound
	}
	if code != nil {
		t.store.mu.Lock()
		collide := t.store.codeCollisions > 0
		if collide {
			t.store.codeCollisions--
		}
		t.store.mu.Unlock()
		if collide {
			return storage.ErrDuplicate
		}
		for id, other := range t.work.groups {
			if id != groupID && other.InviteCode != nil && *other.InviteCode == *code {
				return storage.ErrDuplicate
			}
		}
	}
	g.InviteCode = code
	return nil
}

func (t *fakeTx) SetOverwrite(ctx context.Context, groupID int64, overwrite bool) error {
	g, ok := t.work.groups[groupID]
	if !ok {
		return storage.ErrNotFound
	}
	g.Overwrite = overwrite
	return nil
}

func (t *fakeTx) DeleteGroup(ctx context.Context, groupID int64) error {
	delete(t.work.groups, groupID)
	return nil
}

func (t *fakeTx) InsertMember(ctx context.Context, groupID, userID int64) error {
	key := memberKey{groupID, userID}
	if _, ok := t.work.members[key]; ok {
		return storage.ErrDuplicate
	}
	n := 0
	for k := range t.work.members {
		if k.groupID == groupID {
			n++
		}
	}
	if n >= t.store.memberCap {
		return storage.ErrCapacity
	}
	t.work.members[key] = &models.GroupMember{GroupID: groupID, UserID: userID, Balance: decimal.Zero}
	return nil
}

func (t *fakeTx) GetMember(ctx context.Context, groupID, userID int64) (*models.GroupMember, error) {
	m, ok := t.work.members[memberKey{groupID, userID}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (t *fakeTx) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	_, ok := t.work.members[memberKey{groupID, userID}]
	return ok, nil
}

func (t *fakeTx) DeleteMember(ctx context.Context, groupID, userID int64) error {
	key := memberKey{groupID, userID}
	if _, ok := t.work.members[key]; !ok {
		return storage.ErrNotFound
	}
	delete(t.work.members, key)
	return nil
}

func (t *fakeTx) CountMembers(ctx context.Context, groupID int64) (int, error) {
	n := 0
	for k := range t.work.members {
		if k.groupID == groupID {
			n++
		}
	}
	return n, nil
}

func (t *fakeTx) GroupMembers(ctx context.Context, groupID int64) ([]*models.GroupMember, error) {
	var out []*models.GroupMember
	for k, m := range t.work.members {
		if k.groupID == groupID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *fakeTx) MembershipsByUser(ctx context.Context, userID int64) ([]*models.GroupMember, error) {
	var out []*models.GroupMember
	for k, m := range t.work.members {
		if k.userID == userID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *fakeTx) DeleteSettledMembershipsByUser(ctx context.Context, userID int64) (int64, error) {
	var deleted int64
	for k, m := range t.work.members {
		if k.userID == userID && m.Balance.IsZero() {
			delete(t.work.members, k)
			deleted++
		}
	}
	return deleted, nil
}

func (t *fakeTx) AdjustBalance(ctx context.Context, groupID, userID int64, delta decimal.Decimal) error {
	m, ok := t.work.members[memberKey{groupID, userID}]
	if !ok {
		return storage.ErrNotFound
	}
	m.Balance = m.Balance.Add(delta)
	return nil
}

func (t *fakeTx) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	t.work.ledgerSeq++
	txn.ID = t.work.ledgerSeq
	txn.CreatedOn = time.Now()
	txn.ModifiedOn = txn.CreatedOn
	cp := *txn
	cp.Shares = slices.Clone(txn.Shares)
	t.work.txns[txn.ID] = &cp
	return nil
}

func (t *fakeTx) GetTransaction(ctx context.Context, groupID, id int64) (*models.Transaction, error) {
	txn, ok := t.work.txns[id]
	if !ok || txn.GroupID != groupID {
		return nil, storage.ErrNotFound
	}
	cp := *txn
	cp.Shares = slices.Clone(txn.Shares)
	return &cp, nil
}

func (t *fakeTx) UpdateTransaction(ctx context.Context, txn *models.Transaction) error {
	old, ok := t.work.txns[txn.ID]
	if !ok || old.GroupID != txn.GroupID {
		return storage.ErrNotFound
	}
	cp := *txn
	cp.Shares = slices.Clone(txn.Shares)
	cp.CreatedOn = old.CreatedOn
	cp.ModifiedOn = time.Now()
	t.work.txns[txn.ID] = &cp
	return nil
}

func (t *fakeTx) DeleteTransaction(ctx context.Context, groupID, id int64) error {
	old, ok := t.work.txns[id]
	if !ok || old.GroupID != groupID {
		return storage.ErrNotFound
	}
	delete(t.work.txns, id)
	return nil
}

func (t *fakeTx) InsertTransfer(ctx context.Context, tr *models.Transfer) error {
	t.work.ledgerSeq++
	tr.ID = t.work.ledgerSeq
	tr.CreatedOn = time.Now()
	tr.ModifiedOn = tr.CreatedOn
	cp := *tr
	t.work.transfers[tr.ID] = &cp
	return nil
}

func (t *fakeTx) GetTransfer(ctx context.Context, groupID, id int64) (*models.Transfer, error) {
	tr, ok := t.work.transfers[id]
	if !ok || tr.GroupID != groupID {
		return nil, storage.ErrNotFound
	}
	cp := *tr
	return &cp, nil
}

func (t *fakeTx) UpdateTransfer(ctx context.Context, tr *models.Transfer) error {
	old, ok := t.work.transfers[tr.ID]
	if !ok || old.GroupID != tr.GroupID {
		return storage.ErrNotFound
	}
	cp := *tr
	cp.CreatedOn = old.CreatedOn
	cp.ModifiedOn = time.Now()
	t.work.transfers[tr.ID] = &cp
	return nil
}

func (t *fakeTx) DeleteTransfer(ctx context.Context, groupID, id int64) error {
	old, ok := t.work.transfers[id]
	if !ok || old.GroupID != groupID {
		return storage.ErrNotFound
	}
	delete(t.work.transfers, id)
	return nil
}

func (t *fakeTx) InsertTombstone(ctx context.Context, contentID int64, kind models.ContentKind, groupID int64) (int64, error) {
	t.work.ledgerSeq++
	t.work.tombstones = append(t.work.tombstones, &models.Tombstone{
		ID:        t.work.ledgerSeq,
		ContentID: contentID,
		Kind:      kind,
		GroupID:   groupID,
		DeletedOn: time.Now(),
	})
	return t.work.ledgerSeq, nil
}

func (t *fakeTx) RemovedContent(ctx context.Context, groupID, watermark int64, knownIDs []int64) ([]models.RemovedRef, error) {
	seen := make(map[models.RemovedRef]bool)
	var out []models.RemovedRef
	for _, ts := range t.work.tombstones {
		if ts.GroupID != groupID {
			continue
		}
		if ts.ID <= watermark && !slices.Contains(knownIDs, ts.ContentID) {
			continue
		}
		ref := models.RemovedRef{ContentID: ts.ContentID, Kind: ts.Kind}
		if !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}
	return out, nil
}

func (t *fakeTx) TransactionIDsAfter(ctx context.Context, groupID, watermark int64) ([]int64, error) {
	var ids []int64
	for id, txn := range t.work.txns {
		if txn.GroupID == groupID && id > watermark {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (t *fakeTx) TransferIDsAfter(ctx context.Context, groupID, watermark int64) ([]int64, error) {
	var ids []int64
	for id, tr := range t.work.transfers {
		if tr.GroupID == groupID && id > watermark {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (t *fakeTx) StreamTransactions(ctx context.Context, groupID int64, ids []int64, fn func(*models.Transaction) error) error {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	for _, id := range sorted {
		txn, err := t.GetTransaction(ctx, groupID, id)
		if err != nil {
			continue
		}
		if err := fn(txn); err != nil {
			return err
		}
	}
	return nil
}

func (t *fakeTx) StreamTransfers(ctx context.Context, groupID int64, ids []int64, fn func(*models.Transfer) error) error {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	for _, id := range sorted {
		tr, err := t.GetTransfer(ctx, groupID, id)
		if err != nil {
			continue
		}
		if err := fn(tr); err != nil {
			return err
		}
	}
	return nil
}

func (t *fakeTx) InsertUser(ctx context.Context, user *models.User) error {
	for _, u := range t.work.users {
		if !u.Deleted && u.Email == user.Email {
			return storage.ErrDuplicate
		}
	}
	t.work.userSeq++
	user.ID = t.work.userSeq
	user.CreatedOn = time.Now()
	cp := *user
	t.work.users[user.ID] = &cp
	return nil
}

func (t *fakeTx) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range t.work.users {
		if !u.Deleted && u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (t *fakeTx) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	u, ok := t.work.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (t *fakeTx) AnonymizeUser(ctx context.Context, userID int64) error {
	u, ok := t.work.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	u.Name = ""
	u.Email = ""
	u.PasswordHash = ""
	u.Deleted = true
	return nil
}

func (t *fakeTx) GroupsByUser(ctx context.Context, userID int64) ([]*models.Group, error) {
	var out []*models.Group
	for k := range t.work.members {
		if k.userID != userID {
			continue
		}
		if g, ok := t.work.groups[k.groupID]; ok {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *fakeTx) MembersOfGroups(ctx context.Context, groupIDs []int64) ([]*models.GroupMember, error) {
	var out []*models.GroupMember
	for k, m := range t.work.members {
		if slices.Contains(groupIDs, k.groupID) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}
