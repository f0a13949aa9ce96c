package dto

import (
	"testing"
	"time"

	"status-promo-marketplace/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsAndEscapes(t *testing.T) {
	req := CreateCampaignRequest{
		Title:       "  Summer <b>Sale</b>  ",
		Description: " 50% off & free delivery ",
		MediaURL:    "  https://cdn.example.com/a.jpg?w=1&h=2  ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "Summer &lt;b&gt;Sale&lt;/b&gt;", req.Title)
	assert.Equal(t, "50% off &amp; free delivery", req.Description)
	assert.Equal(t, "https://cdn.example.com/a.jpg?w=1&h=2", req.MediaURL, "trim-only field keeps its query string")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	type withPtr struct {
		Note  *string
		Empty *string
	}
	note := "  <i>hi</i>  "
	v := withPtr{Note: &note}
	SanitizeStruct(&v)

	assert.Equal(t, "&lt;i&gt;hi&lt;/i&gt;", *v.Note)
	assert.Nil(t, v.Empty)
}

func TestSanitizeStruct_LeavesSlices(t *testing.T) {
	req := SubmitProofRequest{MediaURLs: []string{" https://x/a.jpg?a=1&b=2 "}}
	SanitizeStruct(&req)
	assert.Equal(t, " https://x/a.jpg?a=1&b=2 ", req.MediaURLs[0])
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID(t *testing.T) {
	valid := []string{"ref-001", "REF_002", "a.b.c", "simple123", "ABC-def_GHI.123"}
	for _, tc := range valid {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}

	invalid := []string{"ref 001", "ref<001>", "ref;DROP", "", "ref\n001"}
	for _, tc := range invalid {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

func TestIsSafeURL(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"", true},
		{"https://cdn.example.com/proof.jpg", true},
		{"http://localhost:9000/x.png", true},
		{"ftp://example.com/file", false},
		{"javascript:alert(1)", false},
		{"/relative/path.jpg", false},
		{"https://", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsSafeURL(tt.raw), "url %q", tt.raw)
	}
}

func TestIsUPI(t *testing.T) {
	assert.True(t, IsUPI("004219"))
	assert.False(t, IsUPI("42191"))
	assert.False(t, IsUPI("4219100"))
	assert.False(t, IsUPI("42a191"))
}

// --- Binding tests ---

func TestBinding_SubmitProofRequest(t *testing.T) {
	ok := SubmitProofRequest{MediaURLs: []string{"https://cdn/x.jpg"}, Views: 30}
	require.NoError(t, binding.Validator.ValidateStruct(&ok))

	noMedia := SubmitProofRequest{Views: 30}
	assert.Error(t, binding.Validator.ValidateStruct(&noMedia))

	badURL := SubmitProofRequest{MediaURLs: []string{"file:///etc/passwd"}}
	assert.Error(t, binding.Validator.ValidateStruct(&badURL))

	negative := SubmitProofRequest{MediaURLs: []string{"https://cdn/x.jpg"}, Views: -1}
	assert.Error(t, binding.Validator.ValidateStruct(&negative))
}

func TestBinding_WithdrawalRequest(t *testing.T) {
	valid := WithdrawalRequest{
		ReferenceID:   "wd-001",
		Amount:        5000,
		BankCode:      "HDFC0001",
		AccountNumber: "1234567890",
		AccountName:   "Asha Rao",
	}
	require.NoError(t, binding.Validator.ValidateStruct(&valid))

	badWallet := valid
	badWallet.Wallet = "gold"
	assert.Error(t, binding.Validator.ValidateStruct(&badWallet))

	badAccount := valid
	badAccount.AccountNumber = "12-34"
	assert.Error(t, binding.Validator.ValidateStruct(&badAccount))

	badRef := valid
	badRef.ReferenceID = "wd 001"
	assert.Error(t, binding.Validator.ValidateStruct(&badRef))
}

func TestBinding_CreateCampaignRequest(t *testing.T) {
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	valid := CreateCampaignRequest{Title: "Launch", Budget: 1000, PayoutPerPromotion: 100, EndDate: &end}
	require.NoError(t, binding.Validator.ValidateStruct(&valid))

	badMedia := valid
	badMedia.MediaURL = "javascript:void(0)"
	assert.Error(t, binding.Validator.ValidateStruct(&badMedia))

	noBudget := valid
	noBudget.Budget = 0
	assert.Error(t, binding.Validator.ValidateStruct(&noBudget))
}

// --- Response helpers ---

func TestMaskAccountNumber(t *testing.T) {
	assert.Equal(t, "******7890", MaskAccountNumber("1234567890"))
	assert.Equal(t, "7890", MaskAccountNumber("7890"))
	assert.Equal(t, "", MaskAccountNumber(""))
}

func TestNewWithdrawalResponse_Masks(t *testing.T) {
	w := &domain.Withdrawal{ID: uuid.New(), AccountNumber: "9988776655", Status: domain.WithdrawalCompleted, Wallet: domain.WalletPromoter}
	resp := NewWithdrawalResponse(w)
	assert.Equal(t, "******6655", resp.AccountNumber)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, "promoter", resp.Wallet)
}

func TestNewListResponse(t *testing.T) {
	resp := NewListResponse[int](nil, 41, 2, 20)
	assert.Equal(t, []int{}, resp.Items)
	assert.Equal(t, 3, resp.TotalPages)

	empty := NewListResponse([]string{}, 0, 1, 20)
	assert.Equal(t, 0, empty.TotalPages)
}
