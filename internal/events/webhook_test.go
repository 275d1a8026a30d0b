package events

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidshare/backend/internal/pipeline"
)

type recordingStatus struct {
	evs []pipeline.StatusEvent
}

func (r *recordingStatus) Handle(_ context.Context, ev pipeline.StatusEvent) error {
	r.evs = append(r.evs, ev)
	return nil
}

func newWebhookRouter(up UploadHandler, st StatusHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewWebhookHandler(up, st, nil).Register(r.Group("/events"))
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookJobStatus(t *testing.T) {
	st := &recordingStatus{}
	r := newWebhookRouter(&recordingUpload{}, st)

	w := post(r, "/events/job-status", jobStateChange)
	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, st.evs, 1)
	assert.Equal(t, "abc", st.evs[0].CorrelationID)

	w = post(r, "/events/job-status", `{"correlationId":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(r, "/events/job-status", `garbage`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookUpload(t *testing.T) {
	up := &recordingUpload{}
	r := newWebhookRouter(up, &recordingStatus{})

	w := post(r, "/events/upload", s3Notification)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Len(t, up.evs, 2)

	up.err = map[string]error{"abc": errors.New("mediainfo failed")}
	w = post(r, "/events/upload", s3Notification)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func subscriptionConfirmation(subscribeURL string) string {
	return `{"Type":"SubscriptionConfirmation","MessageId":"m-1","Token":"tok",` +
		`"TopicArn":"arn:aws:sns:us-east-1:123456789012:uploads","Message":"You have chosen to subscribe",` +
		`"SubscribeURL":"` + subscribeURL + `"}`
}

func TestWebhookConfirmsSNSSubscription(t *testing.T) {
	var hits int
	sns := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "ConfirmSubscription", r.URL.Query().Get("Action"))
		w.WriteHeader(http.StatusOK)
	}))
	defer sns.Close()

	gin.SetMode(gin.TestMode)
	up, st := &recordingUpload{}, &recordingStatus{}
	h := NewWebhookHandler(up, st, nil)
	h.trusted = func(*url.URL) bool { return true }
	r := gin.New()
	h.Register(r.Group("/events"))

	confirm := subscriptionConfirmation(sns.URL + "/?Action=ConfirmSubscription&Token=tok")
	assert.Equal(t, http.StatusAccepted, post(r, "/events/upload", confirm).Code)
	assert.Equal(t, http.StatusAccepted, post(r, "/events/job-status", confirm).Code)
	assert.Equal(t, 2, hits)
	assert.Empty(t, up.evs)
	assert.Empty(t, st.evs)
}

func TestWebhookSubscriptionConfirmFailureIsRetryable(t *testing.T) {
	sns := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer sns.Close()

	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(&recordingUpload{}, &recordingStatus{}, nil)
	h.trusted = func(*url.URL) bool { return true }
	r := gin.New()
	h.Register(r.Group("/events"))

	assert.Equal(t, http.StatusInternalServerError, post(r, "/events/upload", subscriptionConfirmation(sns.URL)).Code)
}

func TestWebhookRejectsForeignSubscribeURL(t *testing.T) {
	r := newWebhookRouter(&recordingUpload{}, &recordingStatus{})
	w := post(r, "/events/upload", subscriptionConfirmation("http://169.254.169.254/latest/meta-data"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIsSNSEndpoint(t *testing.T) {
	for raw, want := range map[string]bool{
		"https://sns.us-east-1.amazonaws.com/?Action=ConfirmSubscription": true,
		"https://sns.cn-north-1.amazonaws.com.cn/":                        true,
		"http://sns.us-east-1.amazonaws.com/":                             false,
		"https://evil.example.com/sns.amazonaws.com":                      false,
		"https://sns.us-east-1.amazonaws.com.evil.io/":                    false,
	} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, isSNSEndpoint(u), raw)
	}
}
