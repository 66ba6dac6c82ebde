package storage

const (
	insertExpense = `INSERT INTO expenses (amount, category, description, date, month, year)
VALUES (?, ?, ?, ?, ?, ?)`

	updateExpense = `UPDATE expenses
SET amount = ?, category = ?, description = ?, date = ?, month = ?, year = ?
WHERE id = ?`

	deleteExpense = `DELETE FROM expenses WHERE id = ?`

	expenseColumns = `id, amount, category, description, date, month, year`

	getExpensesByMonth = `SELECT ` + expenseColumns + ` FROM expenses
WHERE month = ? AND year = ?
ORDER BY date DESC, id DESC`

	getTotalExpenseByMonth = `SELECT SUM(amount) FROM expenses WHERE month = ? AND year = ?`

	getAllExpenses = `SELECT ` + expenseColumns + ` FROM expenses ORDER BY date DESC, id DESC`

	getExpensesByCategory = `SELECT category, SUM(amount) AS total FROM expenses
WHERE month = ? AND year = ?
GROUP BY category`

	getExpensesByCategoryName = `SELECT ` + expenseColumns + ` FROM expenses
WHERE category = ? AND month = ? AND year = ?
ORDER BY date DESC, id DESC`

	getExpenseCategoryNames = `SELECT DISTINCT category FROM expenses ORDER BY category ASC`

	insertIncome = `INSERT INTO incomes (amount, source, description, date, month, year)
VALUES (?, ?, ?, ?, ?, ?)`

	updateIncome = `UPDATE incomes
SET amount = ?, source = ?, description = ?, date = ?, month = ?, year = ?
WHERE id = ?`

	deleteIncome = `DELETE FROM incomes WHERE id = ?`

	incomeColumns = `id, amount, source, description, date, month, year`

	getIncomesByMonth = `SELECT ` + incomeColumns + ` FROM incomes
WHERE month = ? AND year = ?
ORDER BY date DESC, id DESC`

	getTotalIncomeByMonth = `SELECT SUM(amount) FROM incomes WHERE month = ? AND year = ?`

	getAllIncomes = `SELECT ` + incomeColumns + ` FROM incomes ORDER BY date DESC, id DESC`

	insertCategory = `INSERT OR IGNORE INTO categories (name, is_custom) VALUES (?, ?)`

	deleteCategory = `DELETE FROM categories WHERE name = ?`

	getCategories = `SELECT name, is_custom FROM categories ORDER BY name ASC`

	categoryExists = `SELECT COUNT(*) FROM categories WHERE name = ?`

	countCategories = `SELECT COUNT(*) FROM categories`

	upsertPreference = `INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	getPreference = `SELECT value FROM preferences WHERE key = ?`
)
