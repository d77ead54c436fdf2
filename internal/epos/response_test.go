package epos

import (
	"strings"
	"testing"
)

func TestSuccessResponse_ExactDocument(t *testing.T) {
	want := "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n" +
		"<s:Envelope xmlns:s=\"http://schemas.xmlsoap.org/soap/envelope/\">\n" +
		"<s:Body>\n" +
		"<response success=\"true\" code=\"\" status=\"123456\" battery=\"0\"/>\n" +
		"</s:Body>\n" +
		"</s:Envelope>"

	if got := string(SuccessResponse()); got != want {
		t.Errorf("Success envelope mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestFailureResponse_CarriesCode(t *testing.T) {
	got := string(FailureResponse(CodeDeviceError))

	if !strings.Contains(got, `success="false"`) {
		t.Errorf("Expected success=\"false\", got:\n%s", got)
	}
	if !strings.Contains(got, `code="EPTR_COM_ERROR"`) {
		t.Errorf("Expected device error code, got:\n%s", got)
	}
	if !strings.Contains(got, `status="0"`) {
		t.Errorf("Expected zero status on failure, got:\n%s", got)
	}
}
