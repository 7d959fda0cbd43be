package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// OperationFields 构建存储破坏性操作的公共字段，dry_run 标记让操作员
// 能在日志里区分预演与真实删除。
func OperationFields(action, path string, dryRun bool) logrus.Fields {
	return logrus.Fields{
		"action":  action,
		"path":    path,
		"dry_run": dryRun,
	}
}
