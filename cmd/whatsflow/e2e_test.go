package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"whatsflow/internal/constants"
	"whatsflow/internal/database"
	"whatsflow/internal/features"
	"whatsflow/internal/inbox"
	"whatsflow/internal/models"
	"whatsflow/internal/service"
	"whatsflow/pkg/whatsapp"
	"whatsflow/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedSend struct {
	Path          string
	Authorization string
	Payload       types.SendRequest
}

// fakeCloudAPI accepts every send and keeps the decoded payloads.
type fakeCloudAPI struct {
	mu    sync.Mutex
	sends []capturedSend
}

func (f *fakeCloudAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload types.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.sends = append(f.sends, capturedSend{Path: r.URL.Path, Authorization: r.Header.Get("Authorization"), Payload: payload})
	n := len(f.sends)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"messaging_product": "whatsapp",
		"messages":          []map[string]string{{"id": fmt.Sprintf("wamid.out-%d", n)}},
	})
}

func (f *fakeCloudAPI) Sends() []capturedSend {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedSend(nil), f.sends...)
}

type stack struct {
	server *testServer
	db     *database.Database
	cloud  *fakeCloudAPI
	acct   *models.Account
}

func newStack(t *testing.T) *stack {
	t.Helper()
	t.Setenv(constants.EnvEnableEncryption, "")

	cloud := &fakeCloudAPI{}
	api := httptest.NewServer(cloud)
	t.Cleanup(api.Close)

	db, err := database.New(filepath.Join(t.TempDir(), "whatsflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	acct := &models.Account{
		UserID:        "user-1",
		PhoneNumberID: "pn-1",
		AccessToken:   "EAAG-e2e",
	}
	require.NoError(t, db.CreateAccount(ctx, acct))
	require.NoError(t, db.SaveRule(ctx, &models.Rule{
		AccountID:    acct.ID,
		TriggerType:  models.TriggerExactMatch,
		TriggerValue: "hello",
		Responses:    []string{"Hi there!"},
	}))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := testConfig()
	client := whatsapp.NewClient(api.URL, "v18.0", 2*time.Second)
	responder := service.NewResponder(db, cfg.AI, logger)
	hub := inbox.NewHub(logger)
	sender := service.NewSender(client, db, db, hub, 2*time.Second, logger)
	router := service.NewRouter(db, client, sender, responder, hub, cfg.Replies, logger)
	messages := service.NewMessageService(db, sender, responder, logger)

	return &stack{
		server: &testServer{Server: NewServer(cfg, router, messages, db, hub, features.NewManager(), logger, false)},
		db:     db,
		cloud:  cloud,
		acct:   acct,
	}
}

func TestEndToEnd_RuleReply(t *testing.T) {
	st := newStack(t)
	body := webhookBody("hello")

	w := st.server.do(http.MethodPost, "/webhook", body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", decodeEnvelope(t, w).Status)

	sends := st.cloud.Sends()
	require.Len(t, sends, 1)
	assert.Equal(t, "/v18.0/pn-1/messages", sends[0].Path)
	assert.Equal(t, "Bearer EAAG-e2e", sends[0].Authorization)
	assert.Equal(t, "15550001", sends[0].Payload.To)
	require.NotNil(t, sends[0].Payload.Text)
	assert.Equal(t, "Hi there!", sends[0].Payload.Text.Body)

	conv, err := st.db.GetConversation(context.Background(), st.acct.ID, "15550001")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "Hi there!", conv.LastMessage)

	// Platform redelivery of the same wamid must not answer twice.
	w = st.server.do(http.MethodPost, "/webhook", body, nil)
	assert.Equal(t, "success", decodeEnvelope(t, w).Status)
	assert.Len(t, st.cloud.Sends(), 1)
}

func TestEndToEnd_DefaultReplyWithoutRule(t *testing.T) {
	st := newStack(t)

	st.server.do(http.MethodPost, "/webhook", webhookBody("what are your hours?"), nil)

	sends := st.cloud.Sends()
	require.Len(t, sends, 1)
	require.NotNil(t, sends[0].Payload.Text)
	assert.Equal(t, constants.DefaultReply, sends[0].Payload.Text.Body)
}

func TestEndToEnd_ManualSend(t *testing.T) {
	st := newStack(t)

	body := []byte(`{"toPhoneNumber":"+1 (555) 000-2222","messageBody":"From the inbox","whatsappAccountId":"` + st.acct.ID + `","userId":"user-1"}`)
	w := st.server.do(http.MethodPost, "/api/messages/send", body, nil)

	assert.Equal(t, "success", decodeEnvelope(t, w).Status)
	sends := st.cloud.Sends()
	require.Len(t, sends, 1)
	assert.Equal(t, "15550002222", sends[0].Payload.To)

	conv, err := st.db.GetConversation(context.Background(), st.acct.ID, "15550002222")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "From the inbox", conv.LastMessage)
}

func TestEndToEnd_ManualSendWrongOwner(t *testing.T) {
	st := newStack(t)

	body := []byte(`{"toPhoneNumber":"15550002222","messageBody":"hi","whatsappAccountId":"` + st.acct.ID + `","userId":"intruder"}`)
	w := st.server.do(http.MethodPost, "/api/messages/send", body, nil)

	assert.Equal(t, "error", decodeEnvelope(t, w).Status)
	assert.Empty(t, st.cloud.Sends())
}
