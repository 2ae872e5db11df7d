package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("syntax error at or near \"SELEC\"")

	assert.Equal(t, "run query: syntax error at or near \"SELEC\"", Wrap(cause, KindExecution, "run query").Error())
	assert.Equal(t, cause.Error(), Wrap(cause, KindExecution, "").Error())
	assert.Equal(t, "question is required", New(KindValidation, "question is required").Error())
	assert.Equal(t, "table \"x\" exists", Newf(KindIngest, "table %q exists", "x").Error())
}

func TestKindLookupThroughWrapping(t *testing.T) {
	base := Ingest("sales", errors.New("constraint violated"))
	wrapped := fmt.Errorf("upload sales.csv: %w", base)

	assert.True(t, IsKind(wrapped, KindIngest))
	assert.False(t, IsKind(wrapped, KindSchema))
	assert.Equal(t, KindIngest, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))

	var structured *Error
	require.ErrorAs(t, wrapped, &structured)
	assert.Equal(t, "sales", structured.Table)
}

func TestCauseReturnsInnermostMessage(t *testing.T) {
	inner := errors.New("no such table: orders")
	err := Wrap(Wrap(inner, KindExecution, "execute"), KindExecution, "pipeline")

	assert.Equal(t, "no such table: orders", Cause(err))
	assert.Equal(t, "bad input", Cause(New(KindValidation, "bad input")))
	assert.Equal(t, "", Cause(nil))
}
