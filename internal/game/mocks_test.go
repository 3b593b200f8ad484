package game

import (
	"context"
	"slices"
	"sync"

	"github.com/pscheid92/shiritori/internal/domain"
)

// --- Mock ChannelRepository ---

type mockRepo struct {
	mu      sync.Mutex
	records map[string][]byte
	saves   []string

	saveFn func(ctx context.Context, channel *domain.Channel) error
	getFn  func(ctx context.Context, channelID string) (*domain.Channel, error)
	listFn func(ctx context.Context) ([]string, error)
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: make(map[string][]byte)}
}

func (m *mockRepo) Save(ctx context.Context, channel *domain.Channel) error {
	if m.saveFn != nil {
		if err := m.saveFn(ctx, channel); err != nil {
			return err
		}
	}
	data, err := domain.MarshalChannel(channel)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[channel.ID] = data
	m.saves = append(m.saves, channel.ID)
	return nil
}

func (m *mockRepo) Get(ctx context.Context, channelID string) (*domain.Channel, error) {
	if m.getFn != nil {
		return m.getFn(ctx, channelID)
	}

	m.mu.Lock()
	data, ok := m.records[channelID]
	m.mu.Unlock()
	if !ok {
		return nil, domain.ErrChannelNotFound
	}
	return domain.UnmarshalChannel(data)
}

func (m *mockRepo) List(ctx context.Context) ([]string, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *mockRepo) Ping(context.Context) error { return nil }

func (m *mockRepo) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

func (m *mockRepo) put(id string, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = []byte(data)
}
