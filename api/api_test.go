package api

import "testing"

func TestResultOk(t *testing.T) {
	if !(Result{Code: OK}).Ok() {
		t.Fatal("Result with Code OK should report Ok()")
	}
	for _, c := range []Code{Unspecified, Unavailable, IncorrectArgument, RequestError, NetworkError} {
		if (Result{Code: c}).Ok() {
			t.Fatalf("Result with Code %d should not report Ok()", c)
		}
	}
}
