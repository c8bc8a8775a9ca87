/*
Copyright 2026 The Lodestone Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package lderrors

// Code is a wire-stable error code.
//
// Codes are divided into ranges: 1-49 are user errors (bad arguments,
// missing resources, size limits), 50-99 are throttling errors, 100-124
// are transient server errors that should be retried, and 125 up are
// other server conditions.
type Code int32

const (
	NoError                      Code = 0
	UnknownOperation             Code = 1
	TableNotFound                Code = 2
	IndexNotFound                Code = 3
	IllegalArgument              Code = 4
	RowSizeLimitExceeded         Code = 5
	KeySizeLimitExceeded         Code = 6
	BatchOpNumberLimitExceeded   Code = 7
	RequestSizeLimitExceeded     Code = 8
	TableExists                  Code = 9
	IndexExists                  Code = 10
	InvalidAuthorization         Code = 11
	InsufficientPermission       Code = 12
	ResourceExists               Code = 13
	ResourceNotFound             Code = 14
	TableLimitExceeded           Code = 15
	IndexLimitExceeded           Code = 16
	BadProtocolMessage           Code = 17
	EvolutionLimitExceeded       Code = 18
	TableDeploymentLimitExceeded Code = 19
	TenantDeploymentLimitExceed  Code = 20
	OperationNotSupported        Code = 21
	EtagMismatch                 Code = 22
	CannotCancelWorkRequest      Code = 23
	UnsupportedProtocol          Code = 24
	ReadLimitExceeded            Code = 50
	WriteLimitExceeded           Code = 51
	SizeLimitExceeded            Code = 52
	OperationLimitExceeded       Code = 53
	RequestTimeout               Code = 100
	ServerError                  Code = 101
	ServiceUnavailable           Code = 102
	TableBusy                    Code = 103
	SecurityInfoUnavailable      Code = 104
	RetryAuthentication          Code = 105
	UnknownError                 Code = 125
	IllegalState                 Code = 126
	InternalRetry                Code = 1001
)

var codeNames = map[Code]string{
	NoError:                      "NoError",
	UnknownOperation:             "UnknownOperation",
	TableNotFound:                "TableNotFound",
	IndexNotFound:                "IndexNotFound",
	IllegalArgument:              "IllegalArgument",
	RowSizeLimitExceeded:         "RowSizeLimitExceeded",
	KeySizeLimitExceeded:         "KeySizeLimitExceeded",
	BatchOpNumberLimitExceeded:   "BatchOpNumberLimitExceeded",
	RequestSizeLimitExceeded:     "RequestSizeLimitExceeded",
	TableExists:                  "TableExists",
	IndexExists:                  "IndexExists",
	InvalidAuthorization:         "InvalidAuthorization",
	InsufficientPermission:       "InsufficientPermission",
	ResourceExists:               "ResourceExists",
	ResourceNotFound:             "ResourceNotFound",
	TableLimitExceeded:           "TableLimitExceeded",
	IndexLimitExceeded:           "IndexLimitExceeded",
	BadProtocolMessage:           "BadProtocolMessage",
	EvolutionLimitExceeded:       "EvolutionLimitExceeded",
	TableDeploymentLimitExceeded: "TableDeploymentLimitExceeded",
	TenantDeploymentLimitExceed:  "TenantDeploymentLimitExceeded",
	OperationNotSupported:        "OperationNotSupported",
	EtagMismatch:                 "EtagMismatch",
	CannotCancelWorkRequest:      "CannotCancelWorkRequest",
	UnsupportedProtocol:          "UnsupportedProtocol",
	ReadLimitExceeded:            "ReadLimitExceeded",
	WriteLimitExceeded:           "WriteLimitExceeded",
	SizeLimitExceeded:            "SizeLimitExceeded",
	OperationLimitExceeded:       "OperationLimitExceeded",
	RequestTimeout:               "RequestTimeout",
	ServerError:                  "ServerError",
	ServiceUnavailable:           "ServiceUnavailable",
	TableBusy:                    "TableBusy",
	SecurityInfoUnavailable:      "SecurityInfoUnavailable",
	RetryAuthentication:          "RetryAuthentication",
	UnknownError:                 "UnknownError",
	IllegalState:                 "IllegalState",
	InternalRetry:                "InternalRetry",
}

func (c Code) known() bool { _, ok := codeNames[c]; return ok }

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "Unknown"
}
