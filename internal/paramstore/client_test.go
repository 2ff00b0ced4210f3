package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	getOut *ssm.GetParameterOutput
	getErr error
	lastIn *ssm.GetParameterInput
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.lastIn = in
	return f.getOut, f.getErr
}

func strPtr(s string) *string { return &s }

func TestGetParameterDecrypts(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("/clipbot/discord"), Value: strPtr("tok"), Type: types.ParameterTypeSecureString,
	}}}
	c, err := New(api)
	require.NoError(t, err)

	v, err := c.GetParameter(context.Background(), " /clipbot/discord ")
	require.NoError(t, err)
	require.Equal(t, "tok", v)
	require.Equal(t, "/clipbot/discord", *api.lastIn.Name)
	require.True(t, *api.lastIn.WithDecryption)
}

func TestGetParameterErrors(t *testing.T) {
	_, err := New(nil)
	require.ErrorContains(t, err, "must not be nil")

	_, err = (&Client{}).GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "not initialized")

	c, err := New(&fakeAPI{})
	require.NoError(t, err)
	_, err = c.GetParameter(context.Background(), " ")
	require.ErrorContains(t, err, "required")

	c, _ = New(&fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p")}}})
	_, err = c.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "missing value")

	c, _ = New(&fakeAPI{getErr: errors.New("boom")})
	_, err = c.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "boom")
}

func TestResolve(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: strPtr("secret")}}}
	c, err := New(api)
	require.NoError(t, err)

	v, err := Resolve(context.Background(), c, "plain-value")
	require.NoError(t, err)
	require.Equal(t, "plain-value", v)
	require.Nil(t, api.lastIn)

	v, err = Resolve(context.Background(), c, "ssm:/clipbot/key")
	require.NoError(t, err)
	require.Equal(t, "secret", v)
	require.Equal(t, "/clipbot/key", *api.lastIn.Name)

	_, err = Resolve(context.Background(), nil, "ssm:/x")
	require.Error(t, err)
}
