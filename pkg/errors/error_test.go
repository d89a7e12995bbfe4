package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeUnknownNode, "unknown node")
	suite.NotNil(err)
	suite.Equal(ErrCodeUnknownNode, err.Code)
	suite.Equal("unknown node", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeUnknownNode, "unknown node: %s", "test")
	suite.NotNil(err)
	suite.Equal(ErrCodeUnknownNode, err.Code)
	suite.Equal("unknown node: test", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeQueryFailed, "query failed", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeQueryFailed, err.Code)
	suite.Equal("query failed", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("underlying error")
	err := Wrapf(ErrCodeQueryFailed, cause, "query failed for symbol: %s", "AAPL")
	suite.NotNil(err)
	suite.Equal(ErrCodeQueryFailed, err.Code)
	suite.Equal("query failed for symbol: AAPL", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeUnknownNode, "unknown node")
	suite.Equal("[102] unknown node", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeQueryFailed, "query failed", cause)
	suite.Equal("[701] query failed: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeQueryFailed, "query failed", cause)
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestUnwrapNil() {
	err := New(ErrCodeUnknownNode, "unknown node")
	suite.Nil(err.Unwrap())
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeUnknownNode, "unknown node")
	suite.Equal(ErrCodeUnknownNode, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromWrapped() {
	cause := New(ErrCodeQueryFailed, "query failed")
	err := Wrap(ErrCodeDispatch, "stage failed", cause)
	// GetCode should return the outermost error's code
	suite.Equal(ErrCodeDispatch, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromNonArgoError() {
	err := errors.New("standard error")
	suite.Equal(ErrCodeUnknown, GetCode(err))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeUnknownNode, "unknown node")
	suite.True(HasCode(err, ErrCodeUnknownNode))
	suite.False(HasCode(err, ErrCodeQueryFailed))
}

func (suite *ErrorTestSuite) TestIsError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeQueryFailed, "query failed", cause)
	suite.True(Is(err, cause))
}

func (suite *ErrorTestSuite) TestAsError() {
	err := New(ErrCodeUnknownNode, "unknown node")
	var argoErr *Error
	suite.True(As(err, &argoErr))
	suite.Equal(ErrCodeUnknownNode, argoErr.Code)
}

func (suite *ErrorTestSuite) TestErrorCodeValues() {
	suite.Equal(ErrorCode(1), ErrCodeUnknown)
	suite.Equal(ErrorCode(100), ErrCodeCycle)
	suite.Equal(ErrorCode(200), ErrCodeConcurrentMutation)
	suite.Equal(ErrorCode(400), ErrCodeDispatch)
	suite.Equal(ErrorCode(500), ErrCodeOrderFailed)
	suite.Equal(ErrorCode(600), ErrCodeReportFailed)
	suite.Equal(ErrorCode(700), ErrCodeDataSourceUnavailable)
}

func (suite *ErrorTestSuite) TestGetCodes() {
	inner := New(ErrCodeOrderFailed, "broker rejected")
	err := Wrap(ErrCodeDispatch, "stage failed", inner)

	suite.Equal([]ErrorCode{ErrCodeDispatch, ErrCodeOrderFailed}, GetCodes(err))
	suite.True(HasCodeInChain(err, ErrCodeOrderFailed))
	suite.False(HasCodeInChain(err, ErrCodeCycle))
	suite.Nil(GetCodes(errors.New("plain")))
}

func (suite *ErrorTestSuite) TestIsConfigurationError() {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"cycle", New(ErrCodeCycle, "cycle"), true},
		{"duplicate node", New(ErrCodeDuplicateNode, "dup"), true},
		{"unknown node", New(ErrCodeUnknownNode, "unknown"), true},
		{"dependency violation", New(ErrCodeDependencyViolation, "violation"), true},
		{"dispatch", New(ErrCodeDispatch, "dispatch"), false},
		{"concurrent mutation", New(ErrCodeConcurrentMutation, "busy"), false},
		{"plain error", errors.New("plain"), false},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, IsConfigurationError(tc.err))
		})
	}
}

func (suite *ErrorTestSuite) TestIsDispatchError() {
	cause := errors.New("boom")
	err := Wrap(ErrCodeDispatch, "stage ExitStrategy failed", cause)

	suite.True(IsDispatchError(err))
	suite.True(IsDispatchError(fmt.Errorf("outer: %w", err)))
	suite.False(IsDispatchError(cause))
}

func (suite *ErrorTestSuite) TestIsConcurrentMutationError() {
	err := New(ErrCodeConcurrentMutation, "dispatch in progress")
	suite.True(IsConcurrentMutationError(err))
	suite.False(IsConcurrentMutationError(New(ErrCodeCycle, "cycle")))
}

func (suite *ErrorTestSuite) TestUnsupported() {
	err := Unsupported("ExitNow", "Orders().Exit()")
	suite.Equal(ErrCodeUnsupported, err.Code)
	suite.Equal("ExitNow is unsupported, use Orders().Exit() instead", err.Message)
	suite.True(IsUnsupported(err))
	suite.False(IsUnsupported(errors.New("plain")))
}
