package zcl

import (
	"bytes"
	"errors"
	"testing"
)

func TestBuildWriteAttributesManufacturerSpecific(t *testing.T) {
	h := Header{ManufacturerCode: ManufacturerAtlanticGroup, TSN: 0x2A, DisableDefaultResponse: true}
	frame, err := BuildWriteAttributes(h, []AttributeRecord{{ID: 17011, Type: TypeEnum8, Value: 2}})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x14,       // global | manufacturer specific | disable default response
		0x43, 0x12, // manufacturer code
		0x2A,       // TSN
		0x02,       // write attributes
		0x73, 0x42, // attribute 17011
		0x30, 0x02, // enum8 2
	}
	if !bytes.Equal(frame, want) {
		t.Fatalf("frame = % X, want % X", frame, want)
	}

	parsed, err := ParseFrame(frame)
	if err != nil {
		t.Fatal(err)
	}
	if !parsed.ManufacturerSpecific() || parsed.ManufacturerCode != ManufacturerAtlanticGroup {
		t.Errorf("manufacturer code = 0x%04X", parsed.ManufacturerCode)
	}
	if parsed.TSN != 0x2A || parsed.CommandID != FoundationWriteAttributes || !parsed.Global() {
		t.Errorf("header = %+v", parsed.Header)
	}
	if !bytes.Equal(parsed.Payload, want[5:]) {
		t.Errorf("payload = % X", parsed.Payload)
	}
}

func TestBuildWriteAttributesStandard(t *testing.T) {
	frame, err := BuildWriteAttributes(Header{TSN: 1}, []AttributeRecord{{ID: 0x0025, Type: TypeBitmap8, Value: 4}})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x00, 0x01, 0x02, 0x25, 0x00, 0x18, 0x04}
	if !bytes.Equal(frame, want) {
		t.Errorf("frame = % X, want % X", frame, want)
	}

	if _, err := BuildWriteAttributes(Header{}, []AttributeRecord{{ID: 1, Type: TypeEnum8, Value: 300}}); err == nil {
		t.Error("expected overflow error")
	}
}

func TestBuildDefaultResponse(t *testing.T) {
	frame := BuildDefaultResponse(Header{TSN: 0x37, ServerToClient: true}, 0x00, ZCLStatusSuccess)
	want := []byte{0x18, 0x37, 0x0B, 0x00, 0x00}
	if !bytes.Equal(frame, want) {
		t.Errorf("frame = % X, want % X", frame, want)
	}
}

func TestBuildConfigureReporting(t *testing.T) {
	frame, err := BuildConfigureReporting(Header{TSN: 5}, []ReportingConfig{
		{AttrID: 0x0000, Type: TypeInt16, MinInterval: 0, MaxInterval: 3600, ReportableChange: 10},
		{AttrID: 0x001C, Type: TypeEnum8, MinInterval: 10, MaxInterval: 3600},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x00, 0x05, 0x06,
		0x00, 0x00, 0x00, 0x29, 0x00, 0x00, 0x10, 0x0E, 0x0A, 0x00,
		0x00, 0x1C, 0x00, 0x30, 0x0A, 0x00, 0x10, 0x0E,
	}
	if !bytes.Equal(frame, want) {
		t.Errorf("frame = % X\nwant    % X", frame, want)
	}
}

func TestParseAttributeReports(t *testing.T) {
	payload := []byte{
		0x00, 0x00, 0x29, 0x66, 0x08, // localTemp int16 2150
		0x1C, 0x00, 0x30, 0x03, // systemMode enum8 cool
	}
	records, err := ParseAttributeReports(payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Value != int16(2150) || records[1].ID != 0x001C || records[1].Value != uint8(3) {
		t.Errorf("records = %+v", records)
	}

	if _, err := ParseAttributeReports([]byte{0x00, 0x00, 0x29, 0x66}); err == nil {
		t.Error("expected error for truncated value")
	}
}

func TestParseReadAttributesResponse(t *testing.T) {
	payload := []byte{
		0x00, 0x00, 0x00, 0x29, 0x66, 0x08,
		0x25, 0x00, 0x86,
	}
	results, err := ParseReadAttributesResponse(payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Value != int16(2150) {
		t.Errorf("value = %v", results[0].Value)
	}
	if results[1].Status != ZCLStatusUnsupportedAttr {
		t.Errorf("status = 0x%02X", results[1].Status)
	}
}

func TestParseWriteAttributesResponse(t *testing.T) {
	ok, err := ParseWriteAttributesResponse([]byte{0x00})
	if err != nil || ResponseError(ok) != nil {
		t.Fatalf("success response: %v %v", err, ResponseError(ok))
	}

	failed, err := ParseWriteAttributesResponse([]byte{0x88, 0x73, 0x42})
	if err != nil {
		t.Fatal(err)
	}
	var se *StatusError
	if !errors.As(ResponseError(failed), &se) {
		t.Fatalf("ResponseError = %v, want *StatusError", ResponseError(failed))
	}
	if se.Status != ZCLStatusReadOnly || se.AttrID != 17011 {
		t.Errorf("status error = %+v", se)
	}
}

func TestParseConfigureReportingResponse(t *testing.T) {
	ok, err := ParseConfigureReportingResponse([]byte{0x00})
	if err != nil || ResponseError(ok) != nil {
		t.Fatalf("success response: %v %v", err, ResponseError(ok))
	}

	failed, err := ParseConfigureReportingResponse([]byte{0x8C, 0x00, 0x1C, 0x00})
	if err != nil {
		t.Fatal(err)
	}
	var se *StatusError
	if !errors.As(ResponseError(failed), &se) {
		t.Fatalf("ResponseError = %v, want *StatusError", ResponseError(failed))
	}
	if se.Status != ZCLStatusUnreportable || se.AttrID != 0x001C {
		t.Errorf("status error = %+v", se)
	}

	if _, err := ParseConfigureReportingResponse([]byte{0x8C, 0x00, 0x1C}); err == nil {
		t.Error("expected error for truncated record")
	}
}

func TestParseFrameErrors(t *testing.T) {
	if _, err := ParseFrame([]byte{0x00, 0x01}); err == nil {
		t.Error("expected error for short frame")
	}
	if _, err := ParseFrame([]byte{0x04, 0x43, 0x12}); err == nil {
		t.Error("expected error for short manufacturer-specific frame")
	}
}
