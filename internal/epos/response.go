package epos

import "fmt"

// Result codes reported back to ePOS clients in the response envelope.
const (
	CodeDeviceError = "EPTR_COM_ERROR"
	CodeSchemaError = "SchemaError"
)

// successEnvelope is the exact document the Epson SDKs expect on success;
// clients have been observed to string-match it, so it is not generated
// through an XML encoder.
const successEnvelope = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
<s:Body>
<response success="true" code="" status="123456" battery="0"/>
</s:Body>
</s:Envelope>`

const failureEnvelope = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
<s:Body>
<response success="false" code="%s" status="0" battery="0"/>
</s:Body>
</s:Envelope>`

// SuccessResponse returns the SOAP envelope acknowledging a printed job.
func SuccessResponse() []byte {
	return []byte(successEnvelope)
}

// FailureResponse returns the SOAP envelope reporting a failed job with
// the given result code.
func FailureResponse(code string) []byte {
	return []byte(fmt.Sprintf(failureEnvelope, code))
}
