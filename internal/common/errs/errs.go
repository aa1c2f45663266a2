package errs

import "errors"

// 领域错误分类。所有引擎操作只会返回这些哨兵错误的包装
// （fmt.Errorf("%w: ...")），边界层（HTTP / SMS）据此逐一映射为用户可读的提示。
var (
	// ErrNotFound 引用的车辆 / 保养项目 / 用户在库中不存在。
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput 输入无法解析为要求的数值类型。
	ErrInvalidInput = errors.New("invalid input")

	// ErrDecreasingValue 新里程小于已记录的里程（里程只增不减）。
	ErrDecreasingValue = errors.New("decreasing value")

	// ErrOutOfRange 数值越界（负数，或超过存储层可表示的最大值）。
	ErrOutOfRange = errors.New("value out of range")

	// ErrNoEligibleVehicle 该用户没有需要更新里程的车辆。
	ErrNoEligibleVehicle = errors.New("no eligible vehicle")
)

// IsUserError 判断错误是否属于应回显给用户的校验类错误
// （区别于存储 / 传输等内部错误）。
func IsUserError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrDecreasingValue) ||
		errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrNoEligibleVehicle)
}
