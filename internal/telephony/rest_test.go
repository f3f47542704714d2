package telephony

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestRESTClient(t *testing.T, handler http.HandlerFunc) *RESTClient {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &RESTClient{
		accountSID: "ACtest",
		authToken:  "token",
		baseURL:    srv.URL,
		httpClient: srv.Client(),
	}
}

func TestPlaceCallSetsDefaultStatusCallbackEvent(t *testing.T) {
	var gotEvent string
	c := newTestRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotEvent = r.FormValue("StatusCallbackEvent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sid":"CAtest"}`))
	})

	_, err := c.PlaceCall(context.Background(), PlaceCallParams{
		To:             "+15551234567",
		From:           "+15559990000",
		URL:            "https://gw.example.com/voice/connect",
		StatusCallback: "https://gw.example.com/voice/status",
	})
	require.NoError(t, err)
	require.Equal(t, "initiated ringing answered completed", gotEvent)
}

func TestPlaceCallHonorsExplicitStatusCallbackEvent(t *testing.T) {
	var gotEvent string
	c := newTestRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotEvent = r.FormValue("StatusCallbackEvent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sid":"CAtest"}`))
	})

	_, err := c.PlaceCall(context.Background(), PlaceCallParams{
		To:                  "+15551234567",
		From:                "+15559990000",
		URL:                 "https://gw.example.com/voice/connect",
		StatusCallbackEvent: "completed",
	})
	require.NoError(t, err)
	require.Equal(t, "completed", gotEvent)
}
