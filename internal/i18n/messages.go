// Copyright 2025 The QuickODM Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package i18n

// Message keys used by the error taxonomy and the managers.
const (
	KeyConnectionFailed  = "error.connection_failed"
	KeyValidationFailed  = "error.validation_failed"
	KeyNotFound          = "error.not_found"
	KeyTableNotExist     = "error.table_not_exist"
	KeyDuplicateKey      = "error.duplicate_key"
	KeyQueryFailed       = "error.query_failed"
	KeyPoolExhausted     = "error.pool_exhausted"
	KeyConfigInvalid     = "error.config_invalid"
	KeyLockedOperation   = "error.locked_operation"
	KeyUnsupported       = "error.unsupported_on_backend"
	KeyAliasUnknown      = "error.alias_unknown"
	KeyAliasDuplicate    = "error.alias_duplicate"
	KeyEmptyInList       = "query.empty_in_list"
	KeyTableCreated      = "ddl.table_created"
	KeyProcedureTemplate = "procedure.template_generated"
)

var catalogs = map[string]map[string]string{
	"en": {
		KeyConnectionFailed:  "failed to connect to database %q",
		KeyValidationFailed:  "validation failed for field %q: %s",
		KeyNotFound:          "record not found",
		KeyTableNotExist:     "table %q does not exist",
		KeyDuplicateKey:      "duplicate value for unique field %q",
		KeyQueryFailed:       "query failed: %s",
		KeyPoolExhausted:     "connection pool for alias %q is exhausted",
		KeyConfigInvalid:     "invalid configuration: %s",
		KeyLockedOperation:   "system has begun query phase, database topology is frozen",
		KeyUnsupported:       "operation %q is not supported on backend %q",
		KeyAliasUnknown:      "database alias %q is not registered",
		KeyAliasDuplicate:    "database alias %q is already registered",
		KeyEmptyInList:       "empty IN list matches no rows",
		KeyTableCreated:      "created table %q",
		KeyProcedureTemplate: "generated procedure template %q",
	},
	"zh": {
		KeyConnectionFailed:  "连接数据库 %q 失败",
		KeyValidationFailed:  "字段 %q 验证失败: %s",
		KeyNotFound:          "记录不存在",
		KeyTableNotExist:     "表 %q 不存在",
		KeyDuplicateKey:      "唯一字段 %q 的值重复",
		KeyQueryFailed:       "查询失败: %s",
		KeyPoolExhausted:     "别名 %q 的连接池已耗尽",
		KeyConfigInvalid:     "配置无效: %s",
		KeyLockedOperation:   "系统已开始执行查询操作，无法更改数据库拓扑",
		KeyUnsupported:       "操作 %q 在后端 %q 上不受支持",
		KeyAliasUnknown:      "数据库别名 %q 未注册",
		KeyAliasDuplicate:    "数据库别名 %q 已注册",
		KeyEmptyInList:       "空 IN 列表不匹配任何行",
		KeyTableCreated:      "已创建表 %q",
		KeyProcedureTemplate: "已生成存储过程模板 %q",
	},
}
