package admin

// AdminTelegramID — единственный супер-админ бота, задаётся из конфига при старте.
var AdminTelegramID int64

func Init(adminID int64) {
	AdminTelegramID = adminID
}

func IsAdmin(userID int64) bool {
	return AdminTelegramID != 0 && userID == AdminTelegramID
}
