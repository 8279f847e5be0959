package mocks

// MockAPIKeyVerifier implements auth.APIKeyVerifier for testing
type MockAPIKeyVerifier struct {
	// VerifyFn allows test cases to mock the Verify behavior
	VerifyFn func(key string) error

	// Err is returned when VerifyFn is nil
	Err error
}

// Verify implements the auth.APIKeyVerifier interface
func (m *MockAPIKeyVerifier) Verify(key string) error {
	if m.VerifyFn != nil {
		return m.VerifyFn(key)
	}
	return m.Err
}
