package platform

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Message captured by Mock.
type SentMessage struct {
	To   string
	Text string
}

// Component message captured by Mock.
type SentComponents struct {
	ChannelID string
	MessageID string
	Msg       ComponentMessage
}

// In-memory Platform for tests. Single guild view: members, channels, and voice presence are keyed by ID only.
//
// Failing ops can be simulated by putting an error in Fail under the method name (eg, "SendDirectMessage").
type Mock struct {
	mu sync.Mutex

	GuildNames  map[string]string
	Members     map[string]*Member
	Channels    map[string]*Channel
	RoleDefs    map[string]*Role
	Executors   map[AuditAction]*Actor
	Banned      map[string]string
	Kicked      map[string]string
	DMs         []SentMessage
	ChannelMsgs []SentMessage
	Deleted     []string
	Nicknames   map[string]string
	Components  []SentComponents
	Edits       []SentComponents
	Purged      map[string]int
	// guild -> voice channel the bot is connected to
	BotVoice    map[string]string
	Fail        map[string]error

	// voice channel -> connected member IDs, in join order
	voice  map[string][]string
	nextID int
}

var _ Platform = (*Mock)(nil)

func NewMock() *Mock {
	return &Mock{
		GuildNames: make(map[string]string),
		Members:    make(map[string]*Member),
		Channels:   make(map[string]*Channel),
		RoleDefs:   make(map[string]*Role),
		Executors:  make(map[AuditAction]*Actor),
		Banned:     make(map[string]string),
		Kicked:     make(map[string]string),
		Nicknames:  make(map[string]string),
		Purged:     make(map[string]int),
		BotVoice:   make(map[string]string),
		Fail:       make(map[string]error),
		voice:      make(map[string][]string),
		nextID:     1000,
	}
}

func (m *Mock) fail(op string) error {
	return m.Fail[op]
}

func (m *Mock) newID() string {
	m.nextID++
	return fmt.Sprintf("%d", m.nextID)
}

// Adds a member with the given roles.
func (m *Mock) AddMember(id, username string, roles ...string) *Member {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem := &Member{ID: id, Username: username, Roles: roles}
	m.Members[id] = mem
	return mem
}

// Adds a channel with a fixed ID.
func (m *Mock) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := ch
	m.Channels[ch.ID] = &c
}

// Moves a member's voice presence to channelID (empty to disconnect). Returns the previous channel.
func (m *Mock) Join(memberID, channelID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.move(memberID, channelID)
}

func (m *Mock) move(memberID, channelID string) string {
	before := ""
	for ch, occ := range m.voice {
		if i := slices.Index(occ, memberID); i >= 0 {
			before = ch
			m.voice[ch] = slices.Delete(occ, i, i+1)
		}
	}
	if channelID != "" {
		m.voice[channelID] = append(m.voice[channelID], memberID)
	}
	return before
}

func (m *Mock) RolesOf(memberID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.Members[memberID]
	if !ok {
		return nil
	}
	return slices.Clone(mem.Roles)
}

// Finds the overwrite for targetID on a channel.
func (m *Mock) OverwriteFor(channelID, targetID string) (Overwrite, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.Channels[channelID]
	if !ok {
		return Overwrite{}, false
	}
	for _, ow := range ch.Overwrites {
		if ow.TargetID == targetID {
			return ow, true
		}
	}
	return Overwrite{}, false
}

func (m *Mock) VoiceChannelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ch := range m.Channels {
		if ch.Kind == ChannelVoice {
			n++
		}
	}
	return n
}

func (m *Mock) FetchMember(ctx context.Context, guildID, memberID string) (*Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("FetchMember"); err != nil {
		return nil, err
	}
	mem, ok := m.Members[memberID]
	if !ok {
		return nil, nil
	}
	out := *mem
	out.Roles = slices.Clone(mem.Roles)
	return &out, nil
}

func (m *Mock) SetRoles(ctx context.Context, guildID, memberID string, roleIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SetRoles"); err != nil {
		return err
	}
	mem, ok := m.Members[memberID]
	if !ok {
		return fmt.Errorf("unknown member: %s", memberID)
	}
	mem.Roles = slices.Clone(roleIDs)
	return nil
}

func (m *Mock) AddRole(ctx context.Context, guildID, memberID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("AddRole"); err != nil {
		return err
	}
	mem, ok := m.Members[memberID]
	if !ok {
		return fmt.Errorf("unknown member: %s", memberID)
	}
	if !slices.Contains(mem.Roles, roleID) {
		mem.Roles = append(mem.Roles, roleID)
	}
	return nil
}

func (m *Mock) RemoveRole(ctx context.Context, guildID, memberID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("RemoveRole"); err != nil {
		return err
	}
	mem, ok := m.Members[memberID]
	if !ok {
		return fmt.Errorf("unknown member: %s", memberID)
	}
	mem.Roles = slices.DeleteFunc(mem.Roles, func(r string) bool { return r == roleID })
	return nil
}

func (m *Mock) Ban(ctx context.Context, guildID, memberID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("Ban"); err != nil {
		return err
	}
	m.Banned[memberID] = reason
	delete(m.Members, memberID)
	m.move(memberID, "")
	return nil
}

func (m *Mock) Kick(ctx context.Context, guildID, memberID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("Kick"); err != nil {
		return err
	}
	m.Kicked[memberID] = reason
	delete(m.Members, memberID)
	m.move(memberID, "")
	return nil
}

func (m *Mock) SetNickname(ctx context.Context, guildID, memberID, nickname string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SetNickname"); err != nil {
		return err
	}
	if _, ok := m.Members[memberID]; !ok {
		return fmt.Errorf("unknown member: %s", memberID)
	}
	m.Nicknames[memberID] = nickname
	return nil
}

// Members sorted by ID.
func (m *Mock) ListMembers(ctx context.Context, guildID string) ([]*Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListMembers"); err != nil {
		return nil, err
	}
	out := make([]*Member, 0, len(m.Members))
	for _, id := range slices.Sorted(maps.Keys(m.Members)) {
		mem := *m.Members[id]
		mem.Roles = slices.Clone(mem.Roles)
		out = append(out, &mem)
	}
	return out, nil
}

func (m *Mock) CreateChannel(ctx context.Context, guildID string, spec ChannelSpec) (*Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateChannel"); err != nil {
		return nil, err
	}
	ch := &Channel{
		ID:         m.newID(),
		Name:       spec.Name,
		ParentID:   spec.ParentID,
		Kind:       spec.Kind,
		UserLimit:  spec.UserLimit,
		Overwrites: slices.Clone(spec.Overwrites),
	}
	m.Channels[ch.ID] = ch
	out := *ch
	return &out, nil
}

func (m *Mock) DeleteChannel(ctx context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteChannel"); err != nil {
		return err
	}
	if _, ok := m.Channels[channelID]; !ok {
		return fmt.Errorf("unknown channel: %s", channelID)
	}
	delete(m.Channels, channelID)
	delete(m.voice, channelID)
	m.Deleted = append(m.Deleted, channelID)
	return nil
}

func (m *Mock) ChannelExists(ctx context.Context, guildID, channelID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ChannelExists"); err != nil {
		return false, err
	}
	_, ok := m.Channels[channelID]
	return ok, nil
}

func (m *Mock) SetChannelName(ctx context.Context, channelID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SetChannelName"); err != nil {
		return err
	}
	ch, ok := m.Channels[channelID]
	if !ok {
		return fmt.Errorf("unknown channel: %s", channelID)
	}
	ch.Name = name
	return nil
}

func (m *Mock) SetChannelUserLimit(ctx context.Context, channelID string, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SetChannelUserLimit"); err != nil {
		return err
	}
	ch, ok := m.Channels[channelID]
	if !ok {
		return fmt.Errorf("unknown channel: %s", channelID)
	}
	ch.UserLimit = limit
	return nil
}

func (m *Mock) EditOverwrite(ctx context.Context, channelID string, ow Overwrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("EditOverwrite"); err != nil {
		return err
	}
	ch, ok := m.Channels[channelID]
	if !ok {
		return fmt.Errorf("unknown channel: %s", channelID)
	}
	for i, cur := range ch.Overwrites {
		if cur.TargetID == ow.TargetID {
			ch.Overwrites[i] = MergeOverwrite(cur, ow)
			return nil
		}
	}
	ch.Overwrites = append(ch.Overwrites, ow)
	return nil
}

// Applies edit on top of cur: bits allowed by edit stop being denied, and vice versa.
func MergeOverwrite(cur, edit Overwrite) Overwrite {
	cur.Allow = (cur.Allow &^ edit.Deny) | edit.Allow
	cur.Deny = (cur.Deny &^ edit.Allow) | edit.Deny
	return cur
}

func (m *Mock) CreateRole(ctx context.Context, guildID string, spec Role) (*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateRole"); err != nil {
		return nil, err
	}
	r := spec
	r.ID = m.newID()
	m.RoleDefs[r.ID] = &r
	out := r
	return &out, nil
}

func (m *Mock) DeleteRole(ctx context.Context, guildID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteRole"); err != nil {
		return err
	}
	delete(m.RoleDefs, roleID)
	return nil
}

func (m *Mock) Occupants(ctx context.Context, guildID, channelID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("Occupants"); err != nil {
		return nil, err
	}
	return slices.Clone(m.voice[channelID]), nil
}

func (m *Mock) VoiceChannelOf(ctx context.Context, guildID, memberID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("VoiceChannelOf"); err != nil {
		return "", err
	}
	for ch, occ := range m.voice {
		if slices.Contains(occ, memberID) {
			return ch, nil
		}
	}
	return "", nil
}

func (m *Mock) MoveMember(ctx context.Context, guildID, memberID, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("MoveMember"); err != nil {
		return err
	}
	m.move(memberID, channelID)
	return nil
}

func (m *Mock) JoinVoice(ctx context.Context, guildID, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("JoinVoice"); err != nil {
		return err
	}
	m.BotVoice[guildID] = channelID
	return nil
}

func (m *Mock) LeaveVoice(ctx context.Context, guildID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("LeaveVoice"); err != nil {
		return false, err
	}
	_, ok := m.BotVoice[guildID]
	delete(m.BotVoice, guildID)
	return ok, nil
}

func (m *Mock) SendDirectMessage(ctx context.Context, memberID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SendDirectMessage"); err != nil {
		return err
	}
	m.DMs = append(m.DMs, SentMessage{To: memberID, Text: text})
	return nil
}

func (m *Mock) SendChannelMessage(ctx context.Context, channelID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SendChannelMessage"); err != nil {
		return err
	}
	m.ChannelMsgs = append(m.ChannelMsgs, SentMessage{To: channelID, Text: text})
	return nil
}

func (m *Mock) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteMessage"); err != nil {
		return err
	}
	m.Deleted = append(m.Deleted, messageID)
	return nil
}

func (m *Mock) PurgeMessages(ctx context.Context, channelID string, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("PurgeMessages"); err != nil {
		return 0, err
	}
	m.Purged[channelID] += limit
	return limit, nil
}

func (m *Mock) SendComponents(ctx context.Context, channelID string, msg ComponentMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SendComponents"); err != nil {
		return "", err
	}
	id := m.newID()
	m.Components = append(m.Components, SentComponents{ChannelID: channelID, MessageID: id, Msg: msg})
	return id, nil
}

func (m *Mock) EditComponents(ctx context.Context, channelID, messageID string, msg ComponentMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("EditComponents"); err != nil {
		return err
	}
	m.Edits = append(m.Edits, SentComponents{ChannelID: channelID, MessageID: messageID, Msg: msg})
	return nil
}

func (m *Mock) GuildName(ctx context.Context, guildID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GuildName"); err != nil {
		return "", err
	}
	return m.GuildNames[guildID], nil
}

func (m *Mock) ResolveExecutor(ctx context.Context, guildID string, action AuditAction, targetID string) (*Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ResolveExecutor"); err != nil {
		return nil, err
	}
	a, ok := m.Executors[action]
	if !ok {
		return nil, nil
	}
	out := *a
	return &out, nil
}

// DMs sent to a given member.
func (m *Mock) DMsTo(memberID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, msg := range m.DMs {
		if msg.To == memberID {
			out = append(out, msg.Text)
		}
	}
	return out
}
