package users

import "errors"

var (
	// ErrDuplicateEmail は既に登録済みのメールアドレスで作成・更新しようとした場合のエラーです。
	ErrDuplicateEmail = errors.New("email address is already registered")
	// ErrNotFound は指定されたIDのアカウントが存在しない場合のエラーです。
	ErrNotFound = errors.New("user not found")
)

func isDuplicateEmail(err error) bool { return errors.Is(err, ErrDuplicateEmail) }

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
