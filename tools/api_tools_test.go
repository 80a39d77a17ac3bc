package tools

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/leadline/framework"
)

func carbonStub(t *testing.T, response string) (*CarbonClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, response)
	}))
	return NewCarbonClient(srv.URL, "secret", time.Second), srv
}

func TestCreditPullToolRequiresPermission(t *testing.T) {
	tool := &CreditPullTool{API: NewCarbonClient("http://unused", "k", time.Second)}

	state := completeState()
	res, err := tool.Execute(context.Background(), state)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Please obtain credit pull permission first.", res.Message)

	state.CreditPullPermission = boolPtr(false)
	res, _ = tool.Execute(context.Background(), state)
	assert.False(t, res.Success)
}

func TestCreditPullToolCallsAPIWhenPermitted(t *testing.T) {
	client, srv := carbonStub(t, `{"Success":true,"Data":{"TotalEligibleDebt":9000},"Message":""}`)
	defer srv.Close()
	tool := &CreditPullTool{API: client}

	state := completeState()
	state.CreditPullPermission = boolPtr(true)
	res, err := tool.Execute(context.Background(), state)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestLeadCreateToolGating(t *testing.T) {
	tool := &LeadCreateTool{API: NewCarbonClient("http://unused", "k", time.Second)}

	state := completeState()
	res, _ := tool.Execute(context.Background(), state)
	assert.Equal(t, "Obtain contact permission first.", res.Message)

	state.ContactPermission = boolPtr(true)
	res, _ = tool.Execute(context.Background(), state)
	assert.Equal(t, "Ask for credit pull permission first.", res.Message)
}

func TestLeadCreateToolProceedsAfterDeclinedCreditPull(t *testing.T) {
	client, srv := carbonStub(t, `{"Success":true,"Data":{"IsDuplicate":false},"Message":""}`)
	defer srv.Close()
	tool := &LeadCreateTool{API: client}

	state := completeState()
	state.ContactPermission = boolPtr(true)
	// declined credit pull resolves the step without a report
	state.CreditPullComplete = boolPtr(false)

	res, err := tool.Execute(context.Background(), state)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestWebFormSubmitToolRequiresLead(t *testing.T) {
	tool := &WebFormSubmitTool{API: NewCarbonClient("http://unused", "k", time.Second)}

	state := completeState()
	res, _ := tool.Execute(context.Background(), state)
	assert.Equal(t, "Create the lead first.", res.Message)

	state.LeadCreateComplete = boolPtr(false)
	res, _ = tool.Execute(context.Background(), state)
	assert.False(t, res.Success)
}

func TestAskPermissionToolSuspends(t *testing.T) {
	tool := NewAskContactPermissionTool()
	state := completeState()

	res, err := tool.Execute(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, res.Pending)
	assert.Equal(t, framework.ToolAskContactPermission, res.Pending.ToolName)
	assert.Equal(t, framework.ContactPermissionPrompt, res.Pending.Prompt)
}

func TestAskPermissionToolHonorsGate(t *testing.T) {
	contact := NewAskContactPermissionTool()
	creditPull := NewAskCreditPullPermissionTool()

	incomplete := framework.NewConversationState("s1")
	res, err := contact.Execute(context.Background(), incomplete)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Nil(t, res.Pending)
	assert.Contains(t, res.Message, "required customer information")

	state := completeState()
	res, _ = creditPull.Execute(context.Background(), state)
	assert.Equal(t, "Obtain the contact permission first.", res.Message)

	state.ContactPermission = boolPtr(true)
	state.CreditPullPermission = boolPtr(false)
	res, _ = creditPull.Execute(context.Background(), state)
	assert.Equal(t, "Credit pull permission already obtained.", res.Message)
}
