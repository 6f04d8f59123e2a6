package etherscan

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExplorer answers verifysourcecode with a GUID and reports the job
// pending for the first pendingPolls status checks
type fakeExplorer struct {
	mu           sync.Mutex
	pendingPolls int
	submitResult map[string]any
	finalResult  map[string]any
	forms        []map[string]string
	polls        int
}

func (f *fakeExplorer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	form := make(map[string]string)
	for k := range r.Form {
		form[k] = r.Form.Get(k)
	}
	f.forms = append(f.forms, form)

	w.Header().Set("Content-Type", "application/json")
	switch form["action"] {
	case "verifysourcecode":
		_ = json.NewEncoder(w).Encode(f.submitResult)
	case "checkverifystatus":
		f.polls++
		if f.polls <= f.pendingPolls {
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "0", "message": "NOTOK", "result": "Pending in queue"})
			return
		}
		_ = json.NewEncoder(w).Encode(f.finalResult)
	case "getsourcecode":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "1", "message": "OK",
			"result": []map[string]any{{"SourceCode": "contract ChainBattles {}"}},
		})
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

// state returns the recorded polls and requests
func (f *fakeExplorer) state() (int, []map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls, f.forms
}

func newTestClient(t *testing.T, f *fakeExplorer) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return New(srv.URL, "APIKEY", WithPollInterval(time.Millisecond))
}

func testRequest() SubmitRequest {
	return SubmitRequest{
		Address:         "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		ContractName:    "contracts/ChainBattles.sol:ChainBattles",
		CompilerVersion: "0.8.10+commit.fc410830",
		StandardJSON:    []byte(`{"language":"Solidity"}`),
	}
}

func TestVerify_PollsUntilVerified(t *testing.T) {
	f := &fakeExplorer{
		pendingPolls: 2,
		submitResult: map[string]any{"status": "1", "message": "OK", "result": "guid-123"},
		finalResult:  map[string]any{"status": "1", "message": "OK", "result": "Pass - Verified"},
	}
	c := newTestClient(t, f)

	err := c.Verify(context.Background(), testRequest())
	require.NoError(t, err)

	polls, forms := f.state()
	assert.Equal(t, 3, polls)

	submit := forms[0]
	assert.Equal(t, "APIKEY", submit["apikey"])
	assert.Equal(t, "contract", submit["module"])
	assert.Equal(t, "verifysourcecode", submit["action"])
	assert.Equal(t, "solidity-standard-json-input", submit["codeformat"])
	assert.Equal(t, "v0.8.10+commit.fc410830", submit["compilerversion"])
	assert.Equal(t, "contracts/ChainBattles.sol:ChainBattles", submit["contractname"])
	assert.Equal(t, `{"language":"Solidity"}`, submit["sourceCode"])

	assert.Equal(t, "guid-123", forms[1]["guid"])
}

func TestVerify_AlreadyVerified(t *testing.T) {
	f := &fakeExplorer{
		submitResult: map[string]any{"status": "0", "message": "NOTOK", "result": "Contract source code already verified. Already Verified"},
	}
	c := newTestClient(t, f)

	require.NoError(t, c.Verify(context.Background(), testRequest()))
	polls, _ := f.state()
	assert.Equal(t, 0, polls)
}

func TestVerify_Rejected(t *testing.T) {
	t.Run("on submit", func(t *testing.T) {
		f := &fakeExplorer{
			submitResult: map[string]any{"status": "0", "message": "NOTOK", "result": "Invalid API Key"},
		}
		err := newTestClient(t, f).Verify(context.Background(), testRequest())
		assert.ErrorIs(t, err, ErrVerificationFailed)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "Invalid API Key", apiErr.Result)
	})

	t.Run("on status check", func(t *testing.T) {
		f := &fakeExplorer{
			submitResult: map[string]any{"status": "1", "message": "OK", "result": "guid"},
			finalResult:  map[string]any{"status": "0", "message": "NOTOK", "result": "Fail - Unable to verify"},
		}
		err := newTestClient(t, f).Verify(context.Background(), testRequest())
		assert.ErrorIs(t, err, ErrVerificationFailed)
	})
}

func TestVerify_ContextCanceled(t *testing.T) {
	f := &fakeExplorer{
		pendingPolls: 1_000_000,
		submitResult: map[string]any{"status": "1", "message": "OK", "result": "guid"},
	}
	c := newTestClient(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.Error(t, c.Verify(ctx, testRequest()))
}

func TestIsVerified(t *testing.T) {
	c := newTestClient(t, &fakeExplorer{})

	verified, err := c.IsVerified(context.Background(), "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k", WithPollInterval(time.Millisecond)).Submit(context.Background(), testRequest())
	assert.ErrorContains(t, err, "502")
}
