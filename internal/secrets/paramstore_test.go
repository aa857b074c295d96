package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	lastInput *ssm.GetParameterInput
	value     string
	err       error
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{Value: &f.value},
	}, nil
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestGetParameter_DecryptsAndReturnsValue(t *testing.T) {
	api := &fakeSSM{value: "super-secret"}
	c, err := New(api)
	require.NoError(t, err)

	got, err := c.GetParameter(context.Background(), "/therapists/pagination-secret")
	require.NoError(t, err)
	require.Equal(t, "super-secret", got)

	require.NotNil(t, api.lastInput.WithDecryption)
	require.True(t, *api.lastInput.WithDecryption)
	require.Equal(t, "/therapists/pagination-secret", *api.lastInput.Name)
}

func TestGetParameter_EmptyName(t *testing.T) {
	c, err := New(&fakeSSM{})
	require.NoError(t, err)

	_, err = c.GetParameter(context.Background(), "   ")
	require.Error(t, err)
}

func TestGetParameter_APIError(t *testing.T) {
	c, err := New(&fakeSSM{err: errors.New("throttled")})
	require.NoError(t, err)

	_, err = c.GetParameter(context.Background(), "/some/param")
	require.Error(t, err)
}
