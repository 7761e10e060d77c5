package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"whatsflow/internal/constants"
	"whatsflow/internal/database"
	"whatsflow/internal/models"
	"whatsflow/pkg/ai"
	"whatsflow/pkg/whatsapp"
	"whatsflow/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	Kind    string
	From    whatsapp.Sender
	To      string
	Body    string
	Buttons []types.ReplyButton
	Media   string
	Link    string
}

// fakeWhatsAppClient records every send and answers with sequential wamids.
type fakeWhatsAppClient struct {
	mu       sync.Mutex
	sent     []sentMessage
	sendErr  error
	mediaURL string
	mediaErr error
	mediaIDs []string
}

func (c *fakeWhatsAppClient) record(m sentMessage) (*types.SendResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, m)
	if c.sendErr != nil {
		return nil, c.sendErr
	}
	resp := &types.SendResponse{MessagingProduct: "whatsapp"}
	resp.Messages = append(resp.Messages, struct {
		ID string `json:"id"`
	}{ID: fmt.Sprintf("wamid.out-%d", len(c.sent))})
	return resp, nil
}

func (c *fakeWhatsAppClient) SendText(ctx context.Context, from whatsapp.Sender, to, body string) (*types.SendResponse, error) {
	return c.record(sentMessage{Kind: "text", From: from, To: to, Body: body})
}

func (c *fakeWhatsAppClient) SendInteractiveButtons(ctx context.Context, from whatsapp.Sender, to, body string, buttons []types.ReplyButton) (*types.SendResponse, error) {
	return c.record(sentMessage{Kind: "buttons", From: from, To: to, Body: body, Buttons: buttons})
}

func (c *fakeWhatsAppClient) SendMediaLink(ctx context.Context, from whatsapp.Sender, to, mediaType, link, caption string) (*types.SendResponse, error) {
	return c.record(sentMessage{Kind: "media", From: from, To: to, Body: caption, Media: mediaType, Link: link})
}

func (c *fakeWhatsAppClient) GetMediaURL(ctx context.Context, accessToken, mediaID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mediaIDs = append(c.mediaIDs, mediaID)
	return c.mediaURL, c.mediaErr
}

func (c *fakeWhatsAppClient) Sent() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.sent...)
}

func (c *fakeWhatsAppClient) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}

type mockProvider struct {
	mock.Mock
	name string
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) Complete(ctx context.Context, req ai.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (p *recordingPublisher) Publish(m models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, m)
}

func (p *recordingPublisher) Messages() []models.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Message(nil), p.msgs...)
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupTestDB(t *testing.T) *database.Database {
	t.Helper()
	t.Setenv(constants.EnvEnableEncryption, "")
	db, err := database.New(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestAccount(t *testing.T, db *database.Database, mutate func(*models.Account)) *models.Account {
	t.Helper()
	a := &models.Account{
		UserID:             "user-1",
		PhoneNumberID:      "pn-100",
		DisplayPhoneNumber: "+1 555 0100",
		AccessToken:        "EAAG-token",
	}
	if mutate != nil {
		mutate(a)
	}
	require.NoError(t, db.CreateAccount(context.Background(), a))
	return a
}

// testEnv is a router wired to a real store and fake outbound edges.
type testEnv struct {
	db        *database.Database
	client    *fakeWhatsAppClient
	provider  *mockProvider
	publisher *recordingPublisher
	responder *Responder
	sender    *Sender
	router    *Router
	account   *models.Account
	seq       int
}

func newTestEnv(t *testing.T, aiCfg models.AIConfig, mutate func(*models.Account)) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	logger := newTestLogger()

	env := &testEnv{
		db:        db,
		client:    &fakeWhatsAppClient{},
		provider:  &mockProvider{name: models.AIProviderOpenAI},
		publisher: &recordingPublisher{},
	}
	env.account = createTestAccount(t, db, mutate)
	env.responder = NewResponder(db, aiCfg, logger, env.provider)
	env.sender = NewSender(env.client, db, db, env.publisher, 0, logger)
	env.router = NewRouter(db, env.client, env.sender, env.responder, env.publisher, models.RepliesConfig{}, logger)
	return env
}

func (e *testEnv) inbound(text string) InboundEvent {
	e.seq++
	return InboundEvent{
		From:              "15550001",
		PhoneNumberID:     e.account.PhoneNumberID,
		MessageType:       models.MessageTypeText,
		Text:              text,
		ContactName:       "Alice",
		WhatsAppMessageID: fmt.Sprintf("wamid.in-%d", e.seq),
	}
}

func (e *testEnv) saveRule(t *testing.T, r models.Rule) *models.Rule {
	t.Helper()
	r.AccountID = e.account.ID
	require.NoError(t, e.db.SaveRule(context.Background(), &r))
	return &r
}

func (e *testEnv) saveFlow(t *testing.T, f models.Flow) *models.Flow {
	t.Helper()
	f.UserID = e.account.UserID
	require.NoError(t, e.db.SaveFlow(context.Background(), &f))
	return &f
}

func (e *testEnv) conversation(t *testing.T) *models.Conversation {
	t.Helper()
	conv, err := e.db.GetConversation(context.Background(), e.account.ID, "15550001")
	require.NoError(t, err)
	return conv
}

// waitFlow: start -> wait("yes") -> done.
func waitFlow() models.Flow {
	return models.Flow{
		Name: "confirm",
		Nodes: []models.Node{
			{ID: models.StartNodeID, Type: models.NodeTypeInput},
			{ID: "wait", Type: models.NodeTypeIncomingMessage, Data: models.NodeData{ExpectedMessage: "yes"}},
			{ID: "done", Type: models.NodeTypeMessage, Data: models.NodeData{Message: "Great, proceeding..."}},
		},
		Edges: []models.Edge{
			{Source: models.StartNodeID, Target: "wait"},
			{Source: "wait", Target: "done"},
		},
	}
}

// menuFlow: start -> buttons. The flow ends once the buttons are shown.
func menuFlow() models.Flow {
	return models.Flow{
		Name: "menu",
		Nodes: []models.Node{
			{ID: models.StartNodeID, Type: models.NodeTypeInput},
			{ID: "menu", Type: models.NodeTypeButtonMessage, Data: models.NodeData{
				Message: "What do you need?",
				Buttons: []models.Button{{Text: "Prices", Payload: "PRICES"}, {Text: "Hours", Payload: "HOURS"}},
			}},
		},
		Edges: []models.Edge{{Source: models.StartNodeID, Target: "menu"}},
	}
}
