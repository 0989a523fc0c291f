package naming

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOperationID(t *testing.T) {
	tests := []struct {
		method   string
		path     string
		expected string
	}{
		{"GET", "/pets/{id}", "getPetsID"},
		{"get", "/pets", "getPets"},
		{"POST", "/users/{userId}/orders", "postUsersUserIDOrders"},
		{"DELETE", "/api/v1/items/{item_id}", "deleteAPIV1ItemsItemID"},
		{"GET", "/files/{name}.json", "getFilesNameJSON"},
		{"PUT", "/", "put"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			require.Equal(t, tt.expected, OperationID(tt.method, tt.path))
		})
	}
}

func TestCamelCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello_world", "helloWorld"},
		{"HelloWorld", "helloWorld"},
		{"api_key", "apiKey"},
		{"user_id", "userID"},
		{"json_data", "jsonData"},
		{"", ""},
		{"A", "a"},
		{"UserId", "userID"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.Equal(t, tt.expected, CamelCase(tt.input))
		})
	}
}
