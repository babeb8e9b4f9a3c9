package core

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX）
//
// 使用场景：
//   - 训练错误：TRAINING_FAILED, INSUFFICIENT_DATA
//   - 请求错误：UNKNOWN_ENTITY, NO_MODEL
//   - 存储错误：NOT_FOUND, NOT_SUPPORTED
type DomainError struct {
	Code    string // 错误代码（如 "TRAINING_FAILED", "NOT_FOUND"）
	Message string // 错误消息
	Module  string // 模块名称（如 "mf", "engine", "store"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// GetDomainError 获取 DomainError，如果不是则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	if domainErr, ok := err.(*DomainError); ok {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound         = "NOT_FOUND"          // 资源不存在
	ErrorCodeNotSupported     = "NOT_SUPPORTED"      // 操作不支持
	ErrorCodeInvalidInput     = "INVALID_INPUT"      // 输入无效
	ErrorCodeTrainingFailed   = "TRAINING_FAILED"    // 训练失败（数值发散等），保留旧模型
	ErrorCodeInsufficientData = "INSUFFICIENT_DATA"  // 数据不足以训练，继续服务旧模型
	ErrorCodeUnknownEntity    = "UNKNOWN_ENTITY"     // id 不在目录中，内部走冷启动兜底
	ErrorCodeNoModel          = "NO_MODEL"           // 从未训练且无任何兜底数据，唯一的硬错误
)

// 模块名称常量
const (
	ModuleStore   = "store"   // 存储模块
	ModuleMatrix  = "matrix"  // 评分矩阵模块
	ModuleMF      = "mf"      // 隐因子模块
	ModuleContent = "content" // 内容相似度模块
	ModuleEngine  = "engine"  // 引擎模块
	ModuleConfig  = "config"  // 配置模块
)

func is(err error, module, code string) bool {
	domainErr := GetDomainError(err)
	if domainErr == nil {
		return false
	}
	if module != "" && domainErr.Module != module {
		return false
	}
	return domainErr.Code == code
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return is(err, "", ErrorCodeNotFound)
}

// IsTrainingFailed 检查错误是否为训练失败（数值发散、梯度爆炸）
func IsTrainingFailed(err error) bool {
	return is(err, "", ErrorCodeTrainingFailed)
}

// IsInsufficientData 检查错误是否为数据不足
func IsInsufficientData(err error) bool {
	return is(err, "", ErrorCodeInsufficientData)
}

// IsUnknownEntity 检查错误是否为未知实体
func IsUnknownEntity(err error) bool {
	return is(err, "", ErrorCodeUnknownEntity)
}

// IsNoModel 检查错误是否为"无模型可用"硬错误
func IsNoModel(err error) bool {
	return is(err, "", ErrorCodeNoModel)
}
